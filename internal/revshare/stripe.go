package revshare

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookError classifies a webhook failure into what the caller may see
// and what only the logs see.
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// HandleStripeWebhook verifies a Stripe event and, for a successful
// payment carrying booking metadata, runs revenue share attribution for
// that booking. Stripe redelivers on non-2xx, which is exactly the
// at-least-once behavior Process is built to absorb.
func (s *Service) HandleStripeWebhook(r *http.Request, webhookSecret string) (*ProcessResult, error) {
	if webhookSecret == "" {
		return nil, &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("Failed to read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), webhookSecret, opts)
	if err != nil {
		return nil, &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	if s.Logger != nil {
		s.Logger.LogWebhook(string(event.Type), "processing Stripe webhook event")
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			return nil, &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("Failed to unmarshal payment intent: %v", err),
				OriginalErr:   err,
			}
		}

		bookingID, exists := paymentIntent.Metadata["booking_id"]
		if !exists {
			return nil, &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid payment intent data",
				InternalError: "Payment intent has no booking_id in metadata",
			}
		}

		result, err := s.Process(r.Context(), bookingID)
		if err != nil {
			return nil, &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Failed to process booking",
				InternalError: fmt.Sprintf("Failed to attribute shares for booking %s: %v", bookingID, err),
				OriginalErr:   err,
			}
		}
		return result, nil

	default:
		if s.Logger != nil {
			s.Logger.LogWebhook(string(event.Type), "unhandled event type")
		}
		return nil, nil
	}
}
