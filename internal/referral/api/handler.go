package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"ms-revenue/internal/referral"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Registry *referral.Registry
	QR       *referral.QRGenerator
}

// ValidateCode resolves a booking-time code. An unknown or non-moderator
// code answers 200 with valid=false so the booking UI can show a soft
// warning instead of failing the flow.
func (h *Handler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	moderator, err := h.Registry.Validate(r.Context(), code)
	if err != nil {
		http.Error(w, "Could not validate code: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if moderator == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":  code,
			"valid": false,
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":         code,
		"valid":        true,
		"moderator_id": moderator.ID,
	})
}

// EnsureCode issues the moderator's referral code, creating one on first
// call and returning the same code afterwards.
func (h *Handler) EnsureCode(w http.ResponseWriter, r *http.Request) {
	moderatorID := chi.URLParam(r, "moderatorId")

	code, err := h.Registry.EnsureCode(r.Context(), moderatorID)
	if err != nil {
		if errors.Is(err, referral.ErrUserNotFound) {
			http.Error(w, "Moderator not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Could not ensure referral code: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"moderator_id": moderatorID,
		"code":         code,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CodeQR renders the moderator's referral link as a PNG.
func (h *Handler) CodeQR(w http.ResponseWriter, r *http.Request) {
	moderatorID := chi.URLParam(r, "moderatorId")

	code, err := h.Registry.EnsureCode(r.Context(), moderatorID)
	if err != nil {
		if errors.Is(err, referral.ErrUserNotFound) {
			http.Error(w, "Moderator not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Could not ensure referral code: "+err.Error(), http.StatusInternalServerError)
		return
	}

	png, err := h.QR.GenerateCodeQR(code)
	if err != nil {
		http.Error(w, "Could not generate QR code: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
