package billing

import (
	"fmt"
	"strconv"

	"streamflow/logger"
	"streamflow/model"

	"github.com/stripe/stripe-go/v76"
)

// CreateCheckoutSession resolves the plan, reuses or creates the processor
// customer for this user, and returns the hosted checkout URL. No local
// subscription state is written here; activation happens only when the
// completion webhook arrives.
func (s *Service) CreateCheckoutSession(user *model.User, planID int64) (string, error) {
	plan, err := s.plans.GetByID(planID)
	if err != nil {
		return "", err
	}
	if plan.StripePriceID == "" {
		return "", ErrPlanNotConfigured
	}

	customerID, err := s.resolveCustomer(user)
	if err != nil {
		return "", err
	}

	mode := stripe.CheckoutSessionModeSubscription
	if plan.Interval == model.IntervalOneTime {
		mode = stripe.CheckoutSessionModePayment
	}

	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(customerID),
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	// Metadata carries (user_id, plan_id) so webhook events can be
	// correlated back without any local pending state.
	params.AddMetadata("user_id", strconv.FormatInt(user.ID, 10))
	params.AddMetadata("plan_id", strconv.FormatInt(plan.ID, 10))
	if mode == stripe.CheckoutSessionModeSubscription {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id": strconv.FormatInt(user.ID, 10),
				"plan_id": strconv.FormatInt(plan.ID, 10),
			},
		}
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	logger.Info("checkout session created",
		logger.Int64("userId", user.ID),
		logger.Int64("planId", plan.ID),
		logger.String("sessionId", sess.ID))
	return sess.URL, nil
}

// resolveCustomer returns the stored processor customer id, creating one on
// first checkout and persisting it for reuse.
func (s *Service) resolveCustomer(user *model.User) (string, error) {
	if user.StripeCustomerID.Valid && user.StripeCustomerID.String != "" {
		return user.StripeCustomerID.String, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.Username),
	}
	params.AddMetadata("user_id", strconv.FormatInt(user.ID, 10))

	cust, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create processor customer: %w", err)
	}

	if err := s.users.UpdateStripeCustomerID(user.ID, cust.ID); err != nil {
		// The customer exists at the processor; losing the id only costs a
		// duplicate customer on the next checkout.
		logger.Warn("failed to persist processor customer id",
			logger.Int64("userId", user.ID), logger.ErrorField(err))
	}
	return cust.ID, nil
}
