package models

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/hunttickets/backoffice_backend/utils"
	"gorm.io/gorm"
)

// TransactionSource reads one channel's transactions. Sources are queried, never written.
type TransactionSource interface {
	Channel() Channel
	ListPaidByTicketIds(ctx context.Context, ticketIds []string) ([]Transaction, error)
	// ListIdsByTicketIds returns ids in every status; orphan detection needs the full set.
	ListIdsByTicketIds(ctx context.Context, ticketIds []string) ([]string, error)
	ListByIds(ctx context.Context, ids []string) ([]Transaction, error)
	PaidStamp(ctx context.Context, ticketIds []string) (PaidStamp, error)
}

// PaidStamp summarizes a paid transaction set. It changes when a sale is paid,
// and when an older transaction moves into or out of the paid status.
// LatestAt is the zero time when nothing is paid.
type PaidStamp struct {
	LatestAt time.Time
	Count    int64
}

// Add merges two stamps: the later LatestAt and the summed Count.
func (p PaidStamp) Add(o PaidStamp) PaidStamp {
	if o.LatestAt.After(p.LatestAt) {
		p.LatestAt = o.LatestAt
	}
	p.Count += o.Count
	return p
}

type TicketStore interface {
	ListByEvent(ctx context.Context, eventId string) ([]Ticket, error)
}

type CredentialFilter struct {
	Scanned        *bool
	TransactionIds []string
}

// Page with Limit <= 0 returns every row.
type Page struct {
	Offset int
	Limit  int
}

type CredentialStore interface {
	ListByTransactionIds(ctx context.Context, transactionIds []string) ([]Credential, error)
	ListByEvent(ctx context.Context, eventId string, filter CredentialFilter, page Page) ([]Credential, int64, error)
}

type ProfileStore interface {
	ListByIds(ctx context.Context, ids []string) ([]Profile, error)
	// SearchIds returns the ids among userIds whose name or email contains term,
	// case-insensitively.
	SearchIds(ctx context.Context, term string, userIds []string) ([]string, error)
}

type AdvanceStore interface {
	ListByEvent(ctx context.Context, eventId string) ([]*Advance, error)
	Get(ctx context.Context, id string) (*Advance, error)
	Create(ctx context.Context, advance *Advance) error
	Update(ctx context.Context, advance *Advance) error
	Delete(ctx context.Context, advance *Advance) error
}

type FeeStore interface {
	// GetByEvent returns utils.ErrorRecordNotFound when the event has no fee record.
	GetByEvent(ctx context.Context, eventId string) (*EventFee, error)
}

type Stores struct {
	Sources     []TransactionSource
	Tickets     TicketStore
	Credentials CredentialStore
	Profiles    ProfileStore
	Advances    AdvanceStore
	Fees        FeeStore
}

func NewStores(db *gorm.DB) *Stores {
	return &Stores{
		Sources: []TransactionSource{
			&gormTransactionSource[AppTransaction]{db: db, channel: ChannelApp},
			&gormTransactionSource[WebTransaction]{db: db, channel: ChannelWeb},
			&gormTransactionSource[CashTransaction]{db: db, channel: ChannelCash},
		},
		Tickets:     &ticketStore{db: db},
		Credentials: &credentialStore{db: db},
		Profiles:    &profileStore{db: db},
		Advances:    &advanceStore{db: db},
		Fees:        &feeStore{db: db},
	}
}

type gormTransactionSource[M channelRow] struct {
	db      *gorm.DB
	channel Channel
}

func (s *gormTransactionSource[M]) Channel() Channel {
	return s.channel
}

func (s *gormTransactionSource[M]) ListPaidByTicketIds(ctx context.Context, ticketIds []string) ([]Transaction, error) {
	if len(ticketIds) == 0 {
		return nil, nil
	}
	var rows []M
	err := s.db.WithContext(ctx).
		Where("ticket_id IN ?", ticketIds).
		Where("status = ?", TransactionStatusPaidWithQR).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toTransactions(rows), nil
}

func (s *gormTransactionSource[M]) ListIdsByTicketIds(ctx context.Context, ticketIds []string) ([]string, error) {
	if len(ticketIds) == 0 {
		return nil, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(new(M)).
		Where("ticket_id IN ?", ticketIds).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *gormTransactionSource[M]) ListByIds(ctx context.Context, ids []string) ([]Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []M
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toTransactions(rows), nil
}

func (s *gormTransactionSource[M]) PaidStamp(ctx context.Context, ticketIds []string) (PaidStamp, error) {
	if len(ticketIds) == 0 {
		return PaidStamp{}, nil
	}
	var row struct {
		LatestAt sql.NullTime
		Paid     int64
	}
	err := s.db.WithContext(ctx).Model(new(M)).
		Select("MAX(created_at) AS latest_at, COUNT(*) AS paid").
		Where("ticket_id IN ?", ticketIds).
		Where("status = ?", TransactionStatusPaidWithQR).
		Scan(&row).Error
	if err != nil {
		return PaidStamp{}, err
	}
	stamp := PaidStamp{Count: row.Paid}
	if row.LatestAt.Valid {
		stamp.LatestAt = row.LatestAt.Time
	}
	return stamp, nil
}

func toTransactions[M channelRow](rows []M) []Transaction {
	results := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		results = append(results, r.toTransaction())
	}
	return results
}

type ticketStore struct {
	db *gorm.DB
}

func (s *ticketStore) ListByEvent(ctx context.Context, eventId string) ([]Ticket, error) {
	var results []Ticket
	err := s.db.WithContext(ctx).Where("event_id = ?", eventId).Order("name, id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

type credentialStore struct {
	db *gorm.DB
}

func (s *credentialStore) ListByTransactionIds(ctx context.Context, transactionIds []string) ([]Credential, error) {
	if len(transactionIds) == 0 {
		return nil, nil
	}
	var results []Credential
	err := s.db.WithContext(ctx).Where("transaction_id IN ?", transactionIds).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *credentialStore) ListByEvent(ctx context.Context, eventId string, filter CredentialFilter, page Page) ([]Credential, int64, error) {
	scope := func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("event_id = ?", eventId)
		if filter.Scanned != nil {
			tx = tx.Where("scanned = ?", *filter.Scanned)
		}
		if len(filter.TransactionIds) > 0 {
			tx = tx.Where("transaction_id IN ?", filter.TransactionIds)
		}
		return tx
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&Credential{}).Scopes(scope).Count(&count).Error; err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return []Credential{}, 0, nil
	}

	dbCtx := s.db.WithContext(ctx).Scopes(scope).Order("created_at DESC, id")
	if page.Limit > 0 {
		dbCtx = dbCtx.Offset(page.Offset).Limit(page.Limit)
	}
	var results []Credential
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, count, nil
}

type profileStore struct {
	db *gorm.DB
}

func (s *profileStore) ListByIds(ctx context.Context, ids []string) ([]Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var results []Profile
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *profileStore) SearchIds(ctx context.Context, term string, userIds []string) ([]string, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || len(userIds) == 0 {
		return nil, nil
	}
	like := "%" + term + "%"
	var ids []string
	err := s.db.WithContext(ctx).Model(&Profile{}).
		Where("id IN ?", userIds).
		Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

type feeStore struct {
	db *gorm.DB
}

func (s *feeStore) GetByEvent(ctx context.Context, eventId string) (*EventFee, error) {
	var result EventFee
	err := s.db.WithContext(ctx).Where("event_id = ?", eventId).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}
