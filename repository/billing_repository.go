package repository

import (
	"errors"
	"fmt"

	"streamflow/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrPlanNotFound is returned when no plan matches the lookup.
	ErrPlanNotFound = errors.New("subscription plan not found")
	// ErrSubscriptionNotFound is returned when a user has no subscription
	// row; callers usually treat this as "no active subscription".
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// PlanRepository reads the static plan catalog.
type PlanRepository interface {
	GetByID(id int64) (*model.SubscriptionPlan, error)
	GetByStripePriceID(priceID string) (*model.SubscriptionPlan, error)
	List() ([]model.SubscriptionPlan, error)
	Seed(plans []model.SubscriptionPlan) error
}

// SubscriptionRepository manages the per-user subscription row. Only the
// billing reconciliation flow writes here.
type SubscriptionRepository interface {
	// Upsert inserts or replaces the user's subscription row, keyed by the
	// unique user_id index. This is what enforces at most one subscription
	// per user.
	Upsert(sub *model.UserSubscription) error
	GetByUserID(userID int64) (*model.UserSubscription, error)
	GetByStripeSubscriptionID(subID string) (*model.UserSubscription, error)
}

// PaymentRepository appends to the payment log. Records are write-once.
type PaymentRepository interface {
	// Insert appends a payment record. Returns false without error when a
	// record with the same processor event id already exists, so webhook
	// redelivery cannot duplicate history rows.
	Insert(record *model.PaymentRecord) (bool, error)
	ListByUser(userID int64) ([]model.PaymentRecord, error)
}

type gormPlanRepository struct {
	db *gorm.DB
}

// NewGormPlanRepository creates a plan repository.
func NewGormPlanRepository(db *gorm.DB) PlanRepository {
	return &gormPlanRepository{db: db}
}

func (r *gormPlanRepository) GetByID(id int64) (*model.SubscriptionPlan, error) {
	var plan model.SubscriptionPlan
	err := r.db.First(&plan, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan %d: %w", id, err)
	}
	return &plan, nil
}

func (r *gormPlanRepository) GetByStripePriceID(priceID string) (*model.SubscriptionPlan, error) {
	var plan model.SubscriptionPlan
	err := r.db.Where("stripe_price_id = ?", priceID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan for price %s: %w", priceID, err)
	}
	return &plan, nil
}

func (r *gormPlanRepository) List() ([]model.SubscriptionPlan, error) {
	var plans []model.SubscriptionPlan
	if err := r.db.Order("price_cents ASC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (r *gormPlanRepository) Seed(plans []model.SubscriptionPlan) error {
	for i := range plans {
		err := r.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&plans[i]).Error
		if err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", plans[i].Name, err)
		}
	}
	return nil
}

type gormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a subscription repository.
func NewGormSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &gormSubscriptionRepository{db: db}
}

func (r *gormSubscriptionRepository) Upsert(sub *model.UserSubscription) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_id", "stripe_customer_id", "stripe_subscription_id", "status",
			"current_period_start", "current_period_end", "cancel_at_period_end",
			"canceled_at", "updated_at",
		}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to upsert subscription for user %d: %w", sub.UserID, err)
	}
	return nil
}

func (r *gormSubscriptionRepository) GetByUserID(userID int64) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription for user %d: %w", userID, err)
	}
	return &sub, nil
}

func (r *gormSubscriptionRepository) GetByStripeSubscriptionID(subID string) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := r.db.Where("stripe_subscription_id = ?", subID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription %s: %w", subID, err)
	}
	return &sub, nil
}

type gormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a payment repository.
func NewGormPaymentRepository(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepository{db: db}
}

func (r *gormPaymentRepository) Insert(record *model.PaymentRecord) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(record)
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert payment record: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormPaymentRepository) ListByUser(userID int64) ([]model.PaymentRecord, error) {
	var records []model.PaymentRecord
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payment records: %w", err)
	}
	return records, nil
}
