package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"streamflow/core/billing"
	"streamflow/logger"
	"streamflow/repository"
)

// ListPlansHandler returns the plan catalog, cheapest first. This endpoint
// is public.
func (h *APIHandler) ListPlansHandler(w http.ResponseWriter, r *http.Request) {
	plans, err := h.planRepo.List()
	if err != nil {
		logger.Error("[Billing] failed to list plans", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to list plans")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": plans})
}

// CreateCheckoutHandler starts a hosted checkout for a plan and returns the
// redirect URL. The outcome is applied only when the webhook confirms it.
func (h *APIHandler) CreateCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		PlanID int64 `json:"planId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.userRepo.GetUserByID(userID)
	if err != nil || user == nil {
		logger.Error("[Billing] failed to load user for checkout",
			logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to start checkout")
		return
	}

	url, err := h.billing.CreateCheckoutSession(user, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPlanNotFound):
			writeError(w, http.StatusNotFound, "Plan not found")
		case errors.Is(err, billing.ErrPlanNotConfigured):
			writeError(w, http.StatusBadRequest, "Plan is not purchasable")
		default:
			logger.Error("[Billing] checkout session creation failed",
				logger.Int64("userId", userID),
				logger.Int64("planId", req.PlanID),
				logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to start checkout")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"checkoutUrl": url})
}

// GetSubscriptionHandler returns the caller's subscription, or 404 when
// they have never subscribed.
func (h *APIHandler) GetSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sub, err := h.billing.SubscriptionForUser(userID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			writeError(w, http.StatusNotFound, "No subscription")
			return
		}
		logger.Error("[Billing] failed to load subscription",
			logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load subscription")
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// CancelSubscriptionHandler schedules the caller's subscription to end at
// the current period boundary. Access continues until then.
func (h *APIHandler) CancelSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sub, err := h.billing.CancelAtPeriodEnd(userID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			writeError(w, http.StatusNotFound, "No subscription")
			return
		}
		logger.Error("[Billing] failed to cancel subscription",
			logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to cancel subscription")
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// PaymentHistoryHandler returns the caller's payment records, newest first.
func (h *APIHandler) PaymentHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	payments, err := h.billing.PaymentsForUser(userID)
	if err != nil {
		logger.Error("[Billing] failed to load payment history",
			logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load payment history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

// StripeWebhookHandler receives provider events. The raw body must reach
// signature verification untouched. A 400 tells the provider not to retry;
// a 500 asks for redelivery, which is safe because processing is
// idempotent.
func (h *APIHandler) StripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	err = h.billing.HandleEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrBadSignature):
			writeError(w, http.StatusBadRequest, "Invalid signature")
		case errors.Is(err, billing.ErrMalformedEvent),
			errors.Is(err, repository.ErrPlanNotFound),
			errors.Is(err, billing.ErrPlanNotConfigured):
			logger.Warn("[Billing] rejected webhook event", logger.ErrorField(err))
			writeError(w, http.StatusBadRequest, "Unprocessable event")
		default:
			logger.Error("[Billing] webhook processing failed", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Event processing failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
