// Package billing owns the subscription lifecycle: checkout session
// creation on the way out, webhook reconciliation on the way back. Nothing
// else in the system writes subscription or payment rows.
package billing

import (
	"errors"
	"fmt"
	"time"

	"streamflow/model"
	"streamflow/repository"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

var (
	// ErrPlanNotConfigured is returned when a plan has no processor price
	// id and therefore cannot be checked out.
	ErrPlanNotConfigured = errors.New("plan has no processor price configured")
	// ErrBadSignature is returned when a webhook payload fails signature
	// verification. No state is mutated in that case.
	ErrBadSignature = errors.New("webhook signature verification failed")
	// ErrMalformedEvent is returned when a verified event cannot be
	// decoded or references unknown records. Fatal for the event.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// Service coordinates the payment processor, the plan catalog, and the
// subscription/payment tables. Clients are injected at construction; the
// service holds no per-request state.
type Service struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string

	plans    repository.PlanRepository
	subs     repository.SubscriptionRepository
	payments repository.PaymentRepository
	users    repository.UserRepository

	// fetchSubscription is swappable for tests; it defaults to the
	// processor API.
	fetchSubscription func(id string) (*stripe.Subscription, error)
}

// NewService creates a billing service bound to the given Stripe key and
// webhook secret.
func NewService(
	stripeKey, webhookSecret, successURL, cancelURL string,
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	payments repository.PaymentRepository,
	users repository.UserRepository,
) *Service {
	api := &client.API{}
	api.Init(stripeKey, nil)

	s := &Service{
		api:           api,
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
		plans:         plans,
		subs:          subs,
		payments:      payments,
		users:         users,
	}
	s.fetchSubscription = func(id string) (*stripe.Subscription, error) {
		return s.api.Subscriptions.Get(id, nil)
	}
	return s
}

// mapStatus translates the processor's subscription status into ours.
func mapStatus(status stripe.SubscriptionStatus) model.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return model.SubscriptionActive
	case stripe.SubscriptionStatusTrialing:
		return model.SubscriptionTrial
	case stripe.SubscriptionStatusPastDue:
		return model.SubscriptionPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid:
		return model.SubscriptionCanceled
	default:
		return model.SubscriptionIncomplete
	}
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0)
	return &t
}

// SubscriptionForUser returns the user's subscription row, or
// repository.ErrSubscriptionNotFound.
func (s *Service) SubscriptionForUser(userID int64) (*model.UserSubscription, error) {
	return s.subs.GetByUserID(userID)
}

// PaymentsForUser returns the user's payment history, newest first.
func (s *Service) PaymentsForUser(userID int64) ([]model.PaymentRecord, error) {
	return s.payments.ListByUser(userID)
}

// CancelAtPeriodEnd flags the user's subscription to lapse at the end of
// the current period, both at the processor and locally. The webhook's
// subsequent subscription.updated event confirms the same state.
func (s *Service) CancelAtPeriodEnd(userID int64) (*model.UserSubscription, error) {
	sub, err := s.subs.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID == "" {
		return nil, fmt.Errorf("subscription for user %d has no processor id", userID)
	}

	_, err = s.api.Subscriptions.Update(sub.StripeSubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule cancellation with processor: %w", err)
	}

	sub.CancelAtPeriodEnd = true
	if err := s.subs.Upsert(sub); err != nil {
		return nil, err
	}
	return sub, nil
}
