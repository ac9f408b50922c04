package kafka

import (
	"context"
	"encoding/json"
	"time"

	"ms-revenue/internal/models"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer}
}

// Publish writes one message to the given topic.
func (p *Producer) Publish(topic string, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

type shareCreatedEvent struct {
	ShareID          string    `json:"share_id"`
	ModeratorID      string    `json:"moderator_id"`
	BookingID        string    `json:"booking_id"`
	ShareType        string    `json:"share_type"`
	BookingNumber    int       `json:"booking_number"`
	ActualPercentage float64   `json:"actual_percentage"`
	Amount           float64   `json:"amount"`
	CreatedAt        time.Time `json:"created_at"`
}

// PublishShareCreated streams a new ledger row to downstream consumers
// (payout pipeline, moderator notifications).
func (p *Producer) PublishShareCreated(share models.RevenueShare) error {
	event := shareCreatedEvent{
		ShareID:          share.ID,
		ModeratorID:      share.ModeratorID,
		BookingID:        share.BookingID,
		ShareType:        share.ShareType,
		BookingNumber:    share.BookingNumber,
		ActualPercentage: share.ActualPercentage,
		Amount:           share.Amount,
		CreatedAt:        share.CreatedAt,
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Publish(TopicShareCreated, share.BookingID, msgBytes)
}

// PublishCodeAssigned announces a freshly generated referral code.
func (p *Producer) PublishCodeAssigned(userID, code string) error {
	msgBytes, err := json.Marshal(map[string]string{
		"user_id": userID,
		"code":    code,
	})
	if err != nil {
		return err
	}
	return p.Publish(TopicCodeAssigned, userID, msgBytes)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
