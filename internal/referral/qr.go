package referral

import (
	"github.com/skip2/go-qrcode"
)

// QRGenerator renders a moderator's referral link as a PNG for sharing.
type QRGenerator struct {
	linkBase string
}

func NewQRGenerator(linkBase string) *QRGenerator {
	return &QRGenerator{linkBase: linkBase}
}

// ReferralLink builds the booking-flow URL a scanned code lands on.
func (q *QRGenerator) ReferralLink(code string) string {
	return q.linkBase + code
}

// GenerateCodeQR encodes the referral link into a 256px PNG.
func (q *QRGenerator) GenerateCodeQR(code string) ([]byte, error) {
	return qrcode.Encode(q.ReferralLink(code), qrcode.Medium, 256)
}
