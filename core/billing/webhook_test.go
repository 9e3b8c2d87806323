package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"streamflow/model"
	"streamflow/repository"

	"github.com/stripe/stripe-go/v76"
)

const testSecret = "whsec_test_secret"

// signPayload produces a stripe-signature header the webhook package
// accepts for the given payload.
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

type mockPlanRepo struct {
	plans map[int64]*model.SubscriptionPlan
}

func (m *mockPlanRepo) GetByID(id int64) (*model.SubscriptionPlan, error) {
	if p, ok := m.plans[id]; ok {
		return p, nil
	}
	return nil, repository.ErrPlanNotFound
}

func (m *mockPlanRepo) GetByStripePriceID(priceID string) (*model.SubscriptionPlan, error) {
	for _, p := range m.plans {
		if p.StripePriceID == priceID {
			return p, nil
		}
	}
	return nil, repository.ErrPlanNotFound
}

func (m *mockPlanRepo) List() ([]model.SubscriptionPlan, error) { return nil, nil }
func (m *mockPlanRepo) Seed([]model.SubscriptionPlan) error     { return nil }

type mockSubRepo struct {
	byUser map[int64]*model.UserSubscription
}

func newMockSubRepo() *mockSubRepo {
	return &mockSubRepo{byUser: make(map[int64]*model.UserSubscription)}
}

func (m *mockSubRepo) Upsert(sub *model.UserSubscription) error {
	cp := *sub
	m.byUser[sub.UserID] = &cp
	return nil
}

func (m *mockSubRepo) GetByUserID(userID int64) (*model.UserSubscription, error) {
	if s, ok := m.byUser[userID]; ok {
		return s, nil
	}
	return nil, repository.ErrSubscriptionNotFound
}

func (m *mockSubRepo) GetByStripeSubscriptionID(subID string) (*model.UserSubscription, error) {
	for _, s := range m.byUser {
		if s.StripeSubscriptionID == subID {
			return s, nil
		}
	}
	return nil, repository.ErrSubscriptionNotFound
}

type mockPaymentRepo struct {
	records []model.PaymentRecord
}

func (m *mockPaymentRepo) Insert(record *model.PaymentRecord) (bool, error) {
	for _, r := range m.records {
		if r.StripeEventID == record.StripeEventID {
			return false, nil
		}
	}
	m.records = append(m.records, *record)
	return true, nil
}

func (m *mockPaymentRepo) ListByUser(userID int64) ([]model.PaymentRecord, error) {
	return m.records, nil
}

type mockUserRepo struct{}

func (m *mockUserRepo) CreateUser(*model.User) (int64, error)            { return 0, nil }
func (m *mockUserRepo) GetUserByID(int64) (*model.User, error)           { return nil, nil }
func (m *mockUserRepo) GetUserByUsername(string) (*model.User, error)    { return nil, nil }
func (m *mockUserRepo) GetUserByEmail(string) (*model.User, error)       { return nil, nil }
func (m *mockUserRepo) UpdateStripeCustomerID(int64, string) error       { return nil }

func newTestService(t *testing.T) (*Service, *mockSubRepo, *mockPaymentRepo) {
	t.Helper()
	plans := &mockPlanRepo{plans: map[int64]*model.SubscriptionPlan{
		2: {ID: 2, Name: "Premium", StripePriceID: "price_premium", Interval: model.IntervalMonth},
	}}
	subs := newMockSubRepo()
	payments := &mockPaymentRepo{}

	svc := NewService("sk_test_key", testSecret,
		"http://localhost/success", "http://localhost/cancel",
		plans, subs, payments, &mockUserRepo{})
	svc.fetchSubscription = func(id string) (*stripe.Subscription, error) {
		return &stripe.Subscription{
			ID:                 id,
			Status:             stripe.SubscriptionStatusActive,
			CurrentPeriodStart: time.Now().Unix(),
			CurrentPeriodEnd:   time.Now().Add(30 * 24 * time.Hour).Unix(),
			Metadata:           map[string]string{"user_id": "7", "plan_id": "2"},
			Items: &stripe.SubscriptionItemList{
				Data: []*stripe.SubscriptionItem{
					{Price: &stripe.Price{ID: "price_premium"}},
				},
			},
		}, nil
	}
	return svc, subs, payments
}

func deliver(t *testing.T, svc *Service, payload string) error {
	t.Helper()
	body := []byte(payload)
	return svc.HandleEvent(body, signPayload(body, testSecret, time.Now()))
}

func TestBadSignatureRejectedWithoutMutation(t *testing.T) {
	svc, subs, payments := newTestService(t)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{}}}`)
	err := svc.HandleEvent(payload, signPayload(payload, "whsec_wrong", time.Now()))
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
	if len(subs.byUser) != 0 || len(payments.records) != 0 {
		t.Fatalf("state mutated despite signature failure")
	}
}

func TestCheckoutCompletedReconciles(t *testing.T) {
	svc, subs, payments := newTestService(t)

	payload := `{
		"id": "evt_checkout_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"mode": "subscription",
			"amount_total": 999,
			"currency": "usd",
			"customer": "cus_1",
			"subscription": "sub_1",
			"metadata": {"user_id": "7", "plan_id": "2"}
		}}
	}`

	if err := deliver(t, svc, payload); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	sub, err := subs.GetByUserID(7)
	if err != nil {
		t.Fatalf("subscription row missing: %v", err)
	}
	if sub.Status != model.SubscriptionActive {
		t.Fatalf("status = %s, want active", sub.Status)
	}
	if sub.PlanID != 2 || sub.StripeSubscriptionID != "sub_1" || sub.StripeCustomerID != "cus_1" {
		t.Fatalf("unexpected subscription row: %+v", sub)
	}
	if sub.CurrentPeriodEnd == nil {
		t.Fatalf("period bounds not recorded")
	}
	if len(payments.records) != 1 {
		t.Fatalf("payment records = %d, want 1", len(payments.records))
	}
	if payments.records[0].AmountCents != 999 || payments.records[0].Currency != "usd" {
		t.Fatalf("unexpected payment record: %+v", payments.records[0])
	}
}

func TestRedeliveredEventAppendsNoDuplicatePayment(t *testing.T) {
	svc, _, payments := newTestService(t)

	payload := `{
		"id": "evt_checkout_2",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_2",
			"amount_total": 999,
			"currency": "usd",
			"subscription": "sub_1",
			"metadata": {"user_id": "7", "plan_id": "2"}
		}}
	}`

	for i := 0; i < 3; i++ {
		if err := deliver(t, svc, payload); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if len(payments.records) != 1 {
		t.Fatalf("redelivery duplicated payment log: %d records", len(payments.records))
	}
}

func TestSubscriptionDeletedMarksCanceled(t *testing.T) {
	svc, subs, _ := newTestService(t)

	payload := `{
		"id": "evt_sub_del",
		"type": "customer.subscription.deleted",
		"data": {"object": {
			"id": "sub_1",
			"status": "canceled",
			"customer": "cus_1",
			"metadata": {"user_id": "7", "plan_id": "2"}
		}}
	}`

	if err := deliver(t, svc, payload); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	sub, err := subs.GetByUserID(7)
	if err != nil {
		t.Fatalf("subscription row missing: %v", err)
	}
	if sub.Status != model.SubscriptionCanceled {
		t.Fatalf("status = %s, want canceled", sub.Status)
	}
	if sub.CanceledAt == nil {
		t.Fatalf("canceledAt not set")
	}
}

func TestInvoicePaymentRecoversCorrelationFromSubscription(t *testing.T) {
	svc, _, payments := newTestService(t)

	payload := `{
		"id": "evt_inv_1",
		"type": "invoice.payment_succeeded",
		"data": {"object": {
			"id": "in_1",
			"amount_paid": 999,
			"amount_due": 999,
			"currency": "usd",
			"subscription": "sub_1"
		}}
	}`

	if err := deliver(t, svc, payload); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(payments.records) != 1 {
		t.Fatalf("payment records = %d, want 1", len(payments.records))
	}
	rec := payments.records[0]
	if rec.UserID != 7 || rec.PlanID != 2 || rec.Status != "succeeded" {
		t.Fatalf("unexpected payment record: %+v", rec)
	}
}

func TestInvoicePaymentFailedLogsFailure(t *testing.T) {
	svc, _, payments := newTestService(t)

	payload := `{
		"id": "evt_inv_2",
		"type": "invoice.payment_failed",
		"data": {"object": {
			"id": "in_2",
			"amount_paid": 0,
			"amount_due": 999,
			"currency": "usd",
			"subscription": "sub_1"
		}}
	}`

	if err := deliver(t, svc, payload); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	rec := payments.records[0]
	if rec.Status != "failed" || rec.AmountCents != 999 {
		t.Fatalf("unexpected failed payment record: %+v", rec)
	}
}

func TestMissingMetadataIsFatalForEvent(t *testing.T) {
	svc, subs, _ := newTestService(t)

	payload := `{
		"id": "evt_bad",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_x", "metadata": {}}}
	}`

	err := deliver(t, svc, payload)
	if !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
	if len(subs.byUser) != 0 {
		t.Fatalf("malformed event must not write state")
	}
}

func TestUnhandledEventTypeIsAccepted(t *testing.T) {
	svc, _, _ := newTestService(t)

	payload := `{"id":"evt_other","type":"customer.created","data":{"object":{}}}`
	if err := deliver(t, svc, payload); err != nil {
		t.Fatalf("unhandled types should be acknowledged, got %v", err)
	}
}
