package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ms-revenue/internal/logger"
	"ms-revenue/internal/revshare"
	"ms-revenue/internal/revshare/calc"
	"ms-revenue/internal/revshare/db"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service       *revshare.Service
	WebhookSecret string
	Logger        *logger.Logger
}

// SharePreview answers what percentage and no more; payout UIs call it
// before a cohort has any ledger rows.
func (h *Handler) SharePreview(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("bookingNumber")
	bookingNumber, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "bookingNumber must be an integer", http.StatusBadRequest)
		return
	}

	pct, err := calc.Share(bookingNumber)
	if err != nil {
		var verr *calc.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Could not compute share: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"booking_number": bookingNumber,
		"percentage":     pct,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ProcessBooking is the direct m2m trigger the booking workflow calls
// when it confirms a booking without going through Stripe.
func (h *Handler) ProcessBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	result, err := h.Service.Process(r.Context(), bookingID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "Booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Could not process booking: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *Handler) GetModeratorShares(w http.ResponseWriter, r *http.Request) {
	moderatorID := chi.URLParam(r, "moderatorId")
	status := r.URL.Query().Get("status")

	shares, err := h.Service.SharesByModerator(r.Context(), moderatorID, status)
	if err != nil {
		http.Error(w, "Could not load shares: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(shares)
}

func (h *Handler) MarkSharePaid(w http.ResponseWriter, r *http.Request) {
	shareID := chi.URLParam(r, "shareId")

	if err := h.Service.MarkPaid(r.Context(), shareID); err != nil {
		if errors.Is(err, db.ErrShareNotPayable) {
			http.Error(w, "Share not found or already paid", http.StatusConflict)
			return
		}
		http.Error(w, "Could not mark share paid: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"message":"Share marked as paid"}`))
}

func (h *Handler) GetHostConfirmedCount(w http.ResponseWriter, r *http.Request) {
	hostID := chi.URLParam(r, "hostId")

	count, err := h.Service.CountConfirmedForHost(r.Context(), hostID)
	if err != nil {
		http.Error(w, "Could not count bookings: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"host_id":         hostID,
		"confirmed_count": count,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) GetReferralConfirmedCount(w http.ResponseWriter, r *http.Request) {
	moderatorID := chi.URLParam(r, "moderatorId")

	count, err := h.Service.CountConfirmedForReferralCode(r.Context(), moderatorID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "Moderator not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Could not count bookings: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"moderator_id":    moderatorID,
		"confirmed_count": count,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// StripeWebhook terminates the Stripe delivery: 2xx acknowledges, non-2xx
// asks Stripe to redeliver.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.HandleStripeWebhook(r, h.WebhookSecret)
	if err != nil {
		var whErr *revshare.WebhookError
		if errors.As(err, &whErr) {
			if h.Logger != nil {
				h.Logger.LogWebhook("ERROR", whErr.InternalError)
			}
			http.Error(w, whErr.PublicError, whErr.StatusCode)
			return
		}
		http.Error(w, "Webhook processing error", http.StatusInternalServerError)
		return
	}

	// Unhandled event types are acknowledged with an empty body.
	w.Header().Set("Content-Type", "application/json")
	if result == nil {
		w.Write([]byte(`{"received":true}`))
		return
	}
	json.NewEncoder(w).Encode(result)
}
