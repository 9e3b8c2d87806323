package model

import "time"

// SubscriptionStatus is the billing state of a subscription. Values mirror
// the payment processor's own status vocabulary.
type SubscriptionStatus string

const (
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionTrial      SubscriptionStatus = "trial"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
)

// PlanInterval is how a plan bills.
type PlanInterval string

const (
	IntervalMonth   PlanInterval = "month"
	IntervalYear    PlanInterval = "year"
	IntervalOneTime PlanInterval = "one_time"
)

// SubscriptionPlan is static reference data for a purchasable tier.
type SubscriptionPlan struct {
	ID                int64        `json:"id" gorm:"primaryKey"`
	Name              string       `json:"name" gorm:"size:100;not null;uniqueIndex"`
	Description       string       `json:"description" gorm:"size:500"`
	PriceCents        int64        `json:"priceCents" gorm:"not null"`
	Currency          string       `json:"currency" gorm:"size:3;not null;default:usd"`
	Interval          PlanInterval `json:"interval" gorm:"size:20;not null"`
	Features          string       `json:"features" gorm:"type:text"` // JSON-encoded feature list
	StripePriceID     string       `json:"-" gorm:"column:stripe_price_id;size:255;index"`
	StripeProductID   string       `json:"-" gorm:"column:stripe_product_id;size:255"`
	MaxPlaylists      int          `json:"maxPlaylists" gorm:"not null;default:5"`
	MaxPlaylistTracks int          `json:"maxPlaylistTracks" gorm:"not null;default:100"`
	HasAds            bool         `json:"hasAds" gorm:"not null;default:true"`
	HighQualityAudio  bool         `json:"highQualityAudio" gorm:"not null;default:false"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// TableName overrides the GORM default.
func (SubscriptionPlan) TableName() string { return "subscription_plans" }

// UserSubscription is the one billing row per user. Mutated only by the
// billing reconciliation flow, never directly by API handlers. The unique
// index on user_id enforces at most one subscription per user; upserts keep
// the newest processor state.
type UserSubscription struct {
	ID                   int64              `json:"id" gorm:"primaryKey"`
	UserID               int64              `json:"userId" gorm:"not null;uniqueIndex"`
	PlanID               int64              `json:"planId" gorm:"not null"`
	StripeCustomerID     string             `json:"-" gorm:"column:stripe_customer_id;size:255;index"`
	StripeSubscriptionID string             `json:"-" gorm:"column:stripe_subscription_id;size:255;index"`
	Status               SubscriptionStatus `json:"status" gorm:"size:20;not null"`
	CurrentPeriodStart   *time.Time         `json:"currentPeriodStart"`
	CurrentPeriodEnd     *time.Time         `json:"currentPeriodEnd"`
	CancelAtPeriodEnd    bool               `json:"cancelAtPeriodEnd" gorm:"not null;default:false"`
	CanceledAt           *time.Time         `json:"canceledAt"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}

// TableName overrides the GORM default.
func (UserSubscription) TableName() string { return "user_subscriptions" }

// PaymentRecord is one row of the append-only payment log. StripeEventID is
// unique so a redelivered webhook event appends nothing.
type PaymentRecord struct {
	ID                    int64     `json:"id" gorm:"primaryKey"`
	UserID                int64     `json:"userId" gorm:"not null;index"`
	PlanID                int64     `json:"planId"`
	StripeEventID         string    `json:"-" gorm:"column:stripe_event_id;size:255;uniqueIndex"`
	StripePaymentIntentID string    `json:"-" gorm:"column:stripe_payment_intent_id;size:255"`
	StripeInvoiceID       string    `json:"-" gorm:"column:stripe_invoice_id;size:255"`
	AmountCents           int64     `json:"amountCents" gorm:"not null"`
	Currency              string    `json:"currency" gorm:"size:3;not null"`
	Status                string    `json:"status" gorm:"size:20;not null"`
	CreatedAt             time.Time `json:"createdAt"`
}

// TableName overrides the GORM default.
func (PaymentRecord) TableName() string { return "payment_history" }
