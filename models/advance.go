package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hunttickets/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const advanceLockTTL = 15 * time.Second

var validate = validator.New()

// Advance is a manual entry against an event's settlement.
// IsDebt=false is a payment to the producer, IsDebt=true a credit in the platform's favour.
type Advance struct {
	Id            string               `gorm:"primaryKey;size:64" json:"id"`
	EventId       string               `gorm:"index;size:64;not null" json:"event_id"`
	Amount        decimal.Decimal      `gorm:"type:decimal(20,4);not null" json:"amount"`
	Concept       string               `gorm:"size:255;not null" json:"concept"`
	PaymentDate   time.Time            `gorm:"not null" json:"payment_date"`
	PaymentMethod AdvancePaymentMethod `gorm:"size:20;not null" json:"payment_method"`
	IsDebt        bool                 `gorm:"not null;default:false" json:"is_debt"`
	Notes         *string              `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy     string               `gorm:"size:100" json:"created_by"`
	UpdatedBy     string               `gorm:"size:100" json:"updated_by"`
	CreatedAt     time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAdvance struct {
	Amount        decimal.Decimal      `json:"amount"`
	Concept       string               `json:"concept" validate:"required,max=255"`
	PaymentDate   time.Time            `json:"payment_date" validate:"required"`
	PaymentMethod AdvancePaymentMethod `json:"payment_method" validate:"required,oneof=transfer cash check other"`
	IsDebt        bool                 `json:"is_debt"`
	Notes         *string              `json:"notes" validate:"omitempty,max=2000"`
}

// validate input for both create & update
func (input *NewAdvance) validate() error {
	input.Concept = strings.TrimSpace(input.Concept)
	if err := validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %w", utils.ErrInvalidInput, err)
	}
	if !input.Amount.IsPositive() {
		return utils.InvalidInput("amount must be greater than zero")
	}
	return nil
}

func CreateAdvance(ctx context.Context, store AdvanceStore, eventId string, input *NewAdvance) (*Advance, error) {
	if strings.TrimSpace(eventId) == "" {
		return nil, utils.InvalidInput("event id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	actor := utils.Actor(ctx)
	advance := Advance{
		Id:            uuid.NewString(),
		EventId:       eventId,
		Amount:        input.Amount,
		Concept:       input.Concept,
		PaymentDate:   input.PaymentDate,
		PaymentMethod: input.PaymentMethod,
		IsDebt:        input.IsDebt,
		Notes:         input.Notes,
		CreatedBy:     actor,
		UpdatedBy:     actor,
	}
	if err := store.Create(ctx, &advance); err != nil {
		return nil, err
	}
	return &advance, nil
}

func UpdateAdvance(ctx context.Context, store AdvanceStore, id string, input *NewAdvance) (*Advance, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	release, err := utils.ObtainLock(ctx, "Advance:"+id, advanceLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	advance, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	advance.Amount = input.Amount
	advance.Concept = input.Concept
	advance.PaymentDate = input.PaymentDate
	advance.PaymentMethod = input.PaymentMethod
	advance.IsDebt = input.IsDebt
	advance.Notes = input.Notes
	advance.UpdatedBy = utils.Actor(ctx)

	if err := store.Update(ctx, advance); err != nil {
		return nil, err
	}
	return advance, nil
}

func DeleteAdvance(ctx context.Context, store AdvanceStore, id string) (*Advance, error) {
	release, err := utils.ObtainLock(ctx, "Advance:"+id, advanceLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	advance, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := store.Delete(ctx, advance); err != nil {
		return nil, err
	}
	return advance, nil
}

func GetAdvances(ctx context.Context, store AdvanceStore, eventId string) ([]*Advance, error) {
	if strings.TrimSpace(eventId) == "" {
		return nil, utils.InvalidInput("event id is required")
	}
	return store.ListByEvent(ctx, eventId)
}

type advanceStore struct {
	db *gorm.DB
}

func (s *advanceStore) ListByEvent(ctx context.Context, eventId string) ([]*Advance, error) {
	var results []*Advance
	err := s.db.WithContext(ctx).Where("event_id = ?", eventId).Order("payment_date, created_at").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *advanceStore) Get(ctx context.Context, id string) (*Advance, error) {
	var result Advance
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (s *advanceStore) Create(ctx context.Context, advance *Advance) error {
	return s.db.WithContext(ctx).Create(advance).Error
}

func (s *advanceStore) Update(ctx context.Context, advance *Advance) error {
	return s.db.WithContext(ctx).Model(advance).Updates(map[string]interface{}{
		"Amount":        advance.Amount,
		"Concept":       advance.Concept,
		"PaymentDate":   advance.PaymentDate,
		"PaymentMethod": advance.PaymentMethod,
		"IsDebt":        advance.IsDebt,
		"Notes":         advance.Notes,
		"UpdatedBy":     advance.UpdatedBy,
	}).Error
}

func (s *advanceStore) Delete(ctx context.Context, advance *Advance) error {
	return s.db.WithContext(ctx).Delete(advance).Error
}
