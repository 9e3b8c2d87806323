package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"streamflow/logger"
	"streamflow/model"
	"streamflow/repository"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// HandleEvent verifies and applies one webhook delivery. Verification
// failure mutates nothing. Delivery is at-least-once: subscription writes
// are upserts and payment inserts are deduplicated by event id, so a
// redelivered event converges to the same state.
func (s *Service) HandleEvent(payload []byte, sigHeader string) error {
	// Events stay pinned to the account's API version, which may trail the
	// SDK's; only the signature decides authenticity here.
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	logger.Info("webhook event received",
		logger.String("eventId", event.ID),
		logger.String("type", string(event.Type)))

	switch string(event.Type) {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(&event)
	case "customer.subscription.created", "customer.subscription.updated":
		return s.handleSubscriptionChanged(&event, false)
	case "customer.subscription.deleted":
		return s.handleSubscriptionChanged(&event, true)
	case "invoice.payment_succeeded":
		return s.handleInvoice(&event, "succeeded")
	case "invoice.payment_failed":
		return s.handleInvoice(&event, "failed")
	default:
		logger.Debug("ignoring unhandled webhook event type",
			logger.String("type", string(event.Type)))
		return nil
	}
}

// correlationMetadata extracts the (user_id, plan_id) pair embedded at
// checkout time.
func correlationMetadata(metadata map[string]string) (int64, int64, error) {
	userID, err := strconv.ParseInt(metadata["user_id"], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: missing or invalid user_id metadata", ErrMalformedEvent)
	}
	planID, err := strconv.ParseInt(metadata["plan_id"], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: missing or invalid plan_id metadata", ErrMalformedEvent)
	}
	return userID, planID, nil
}

func (s *Service) handleCheckoutCompleted(event *stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("%w: failed to decode checkout session: %v", ErrMalformedEvent, err)
	}

	userID, planID, err := correlationMetadata(sess.Metadata)
	if err != nil {
		return err
	}

	sub := &model.UserSubscription{
		UserID: userID,
		PlanID: planID,
		Status: model.SubscriptionActive,
	}
	if sess.Customer != nil {
		sub.StripeCustomerID = sess.Customer.ID
	}

	if sess.Subscription != nil {
		// Re-fetch so status and period bounds reflect the processor's
		// current view rather than the snapshot inside the event.
		remote, err := s.fetchSubscription(sess.Subscription.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch subscription %s: %w", sess.Subscription.ID, err)
		}
		sub.StripeSubscriptionID = remote.ID
		sub.Status = mapStatus(remote.Status)
		sub.CurrentPeriodStart = unixTime(remote.CurrentPeriodStart)
		sub.CurrentPeriodEnd = unixTime(remote.CurrentPeriodEnd)
		sub.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
	}

	if err := s.subs.Upsert(sub); err != nil {
		return err
	}

	record := &model.PaymentRecord{
		UserID:        userID,
		PlanID:        planID,
		StripeEventID: event.ID,
		AmountCents:   sess.AmountTotal,
		Currency:      string(sess.Currency),
		Status:        "succeeded",
	}
	if sess.PaymentIntent != nil {
		record.StripePaymentIntentID = sess.PaymentIntent.ID
	}

	inserted, err := s.payments.Insert(record)
	if err != nil {
		return err
	}
	if !inserted {
		logger.Warn("duplicate webhook delivery, payment already recorded",
			logger.String("eventId", event.ID))
	}

	logger.Info("checkout completed reconciled",
		logger.Int64("userId", userID),
		logger.Int64("planId", planID),
		logger.String("status", string(sub.Status)))
	return nil
}

func (s *Service) handleSubscriptionChanged(event *stripe.Event, deleted bool) error {
	var remote stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &remote); err != nil {
		return fmt.Errorf("%w: failed to decode subscription: %v", ErrMalformedEvent, err)
	}

	userID, planID, err := correlationMetadata(remote.Metadata)
	if err != nil {
		// Older subscriptions may predate metadata embedding; fall back to
		// the local row keyed by the processor subscription id.
		existing, lookupErr := s.subs.GetByStripeSubscriptionID(remote.ID)
		if lookupErr != nil {
			return err
		}
		userID, planID = existing.UserID, existing.PlanID
	}

	// The plan can change on upgrade/downgrade; the price id on the
	// subscription item is authoritative.
	if len(remote.Items.Data) > 0 && remote.Items.Data[0].Price != nil {
		if plan, err := s.plans.GetByStripePriceID(remote.Items.Data[0].Price.ID); err == nil {
			planID = plan.ID
		} else if !errors.Is(err, repository.ErrPlanNotFound) {
			return err
		}
	}

	sub := &model.UserSubscription{
		UserID:               userID,
		PlanID:               planID,
		StripeSubscriptionID: remote.ID,
		Status:               mapStatus(remote.Status),
		CurrentPeriodStart:   unixTime(remote.CurrentPeriodStart),
		CurrentPeriodEnd:     unixTime(remote.CurrentPeriodEnd),
		CancelAtPeriodEnd:    remote.CancelAtPeriodEnd,
		CanceledAt:           unixTime(remote.CanceledAt),
	}
	if remote.Customer != nil {
		sub.StripeCustomerID = remote.Customer.ID
	}
	if deleted {
		sub.Status = model.SubscriptionCanceled
		if sub.CanceledAt == nil {
			now := time.Now()
			sub.CanceledAt = &now
		}
	}

	if err := s.subs.Upsert(sub); err != nil {
		return err
	}

	logger.Info("subscription state reconciled",
		logger.Int64("userId", userID),
		logger.String("subscriptionId", remote.ID),
		logger.String("status", string(sub.Status)))
	return nil
}

func (s *Service) handleInvoice(event *stripe.Event, status string) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("%w: failed to decode invoice: %v", ErrMalformedEvent, err)
	}
	if invoice.Subscription == nil {
		return fmt.Errorf("%w: invoice %s has no subscription", ErrMalformedEvent, invoice.ID)
	}

	// The invoice itself carries no user correlation; recover (user_id,
	// plan_id) from the subscription's metadata.
	remote, err := s.fetchSubscription(invoice.Subscription.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch subscription %s: %w", invoice.Subscription.ID, err)
	}
	userID, planID, err := correlationMetadata(remote.Metadata)
	if err != nil {
		return err
	}

	amount := invoice.AmountPaid
	if status == "failed" {
		amount = invoice.AmountDue
	}

	record := &model.PaymentRecord{
		UserID:          userID,
		PlanID:          planID,
		StripeEventID:   event.ID,
		StripeInvoiceID: invoice.ID,
		AmountCents:     amount,
		Currency:        string(invoice.Currency),
		Status:          status,
	}
	if invoice.PaymentIntent != nil {
		record.StripePaymentIntentID = invoice.PaymentIntent.ID
	}

	inserted, err := s.payments.Insert(record)
	if err != nil {
		return err
	}
	if !inserted {
		logger.Warn("duplicate webhook delivery, payment already recorded",
			logger.String("eventId", event.ID))
	}

	logger.Info("invoice payment reconciled",
		logger.Int64("userId", userID),
		logger.String("invoiceId", invoice.ID),
		logger.String("status", status))
	return nil
}
