// Package modeltest provides in-memory implementations of the models store
// interfaces for package tests.
package modeltest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/utils"
)

type Fixture struct {
	Stores      *models.Stores
	App         *Source
	Web         *Source
	Cash        *Source
	Tickets     *Tickets
	Credentials *Credentials
	Profiles    *Profiles
	Advances    *Advances
	Fees        *Fees
}

func New() *Fixture {
	f := &Fixture{
		App:         &Source{Chan: models.ChannelApp},
		Web:         &Source{Chan: models.ChannelWeb},
		Cash:        &Source{Chan: models.ChannelCash},
		Tickets:     &Tickets{},
		Credentials: &Credentials{},
		Profiles:    &Profiles{},
		Advances:    &Advances{rows: map[string]*models.Advance{}},
		Fees:        &Fees{Rows: map[string]*models.EventFee{}},
	}
	f.Stores = &models.Stores{
		Sources:     []models.TransactionSource{f.App, f.Web, f.Cash},
		Tickets:     f.Tickets,
		Credentials: f.Credentials,
		Profiles:    f.Profiles,
		Advances:    f.Advances,
		Fees:        f.Fees,
	}
	return f
}

func (f *Fixture) Source(c models.Channel) *Source {
	switch c {
	case models.ChannelApp:
		return f.App
	case models.ChannelWeb:
		return f.Web
	}
	return f.Cash
}

type Source struct {
	Chan  models.Channel
	Txs   []models.Transaction
	Err   error
	Calls atomic.Int32
}

func (s *Source) Channel() models.Channel { return s.Chan }

func (s *Source) ListPaidByTicketIds(ctx context.Context, ticketIds []string) ([]models.Transaction, error) {
	s.Calls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	wanted := toSet(ticketIds)
	var out []models.Transaction
	for _, tx := range s.Txs {
		if wanted[tx.TicketId] && tx.IsPaid() {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Source) ListIdsByTicketIds(ctx context.Context, ticketIds []string) ([]string, error) {
	s.Calls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	wanted := toSet(ticketIds)
	var out []string
	for _, tx := range s.Txs {
		if wanted[tx.TicketId] {
			out = append(out, tx.Id)
		}
	}
	return out, nil
}

func (s *Source) ListByIds(ctx context.Context, ids []string) ([]models.Transaction, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	wanted := toSet(ids)
	var out []models.Transaction
	for _, tx := range s.Txs {
		if wanted[tx.Id] {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Source) PaidStamp(ctx context.Context, ticketIds []string) (models.PaidStamp, error) {
	if s.Err != nil {
		return models.PaidStamp{}, s.Err
	}
	wanted := toSet(ticketIds)
	var stamp models.PaidStamp
	for _, tx := range s.Txs {
		if wanted[tx.TicketId] && tx.IsPaid() {
			stamp = stamp.Add(models.PaidStamp{LatestAt: tx.CreatedAt, Count: 1})
		}
	}
	return stamp, nil
}

type Tickets struct {
	Rows []models.Ticket
	Err  error
}

func (s *Tickets) ListByEvent(ctx context.Context, eventId string) ([]models.Ticket, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.Ticket
	for _, t := range s.Rows {
		if t.EventId == eventId {
			out = append(out, t)
		}
	}
	return out, nil
}

type Credentials struct {
	Rows []models.Credential
	// FailChunk makes ListByTransactionIds fail for the chunks it returns an error for.
	FailChunk func(transactionIds []string) error
	Err       error

	mu        sync.Mutex
	maxIdsIn  int
	lookups   int
	pageCalls int
}

func (s *Credentials) ListByTransactionIds(ctx context.Context, transactionIds []string) ([]models.Credential, error) {
	s.mu.Lock()
	s.lookups++
	if len(transactionIds) > s.maxIdsIn {
		s.maxIdsIn = len(transactionIds)
	}
	s.mu.Unlock()

	if s.FailChunk != nil {
		if err := s.FailChunk(transactionIds); err != nil {
			return nil, err
		}
	}
	wanted := toSet(transactionIds)
	var out []models.Credential
	for _, c := range s.Rows {
		if wanted[c.TransactionId] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Credentials) ListByEvent(ctx context.Context, eventId string, filter models.CredentialFilter, page models.Page) ([]models.Credential, int64, error) {
	s.mu.Lock()
	s.pageCalls++
	s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}

	txFilter := toSet(filter.TransactionIds)
	var matched []models.Credential
	for _, c := range s.Rows {
		if c.EventId != eventId {
			continue
		}
		if filter.Scanned != nil && c.Scanned != *filter.Scanned {
			continue
		}
		if len(txFilter) > 0 && !txFilter[c.TransactionId] {
			continue
		}
		matched = append(matched, c)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Id < matched[j].Id
	})

	total := int64(len(matched))
	if page.Limit > 0 {
		start := min(page.Offset, len(matched))
		end := min(start+page.Limit, len(matched))
		matched = matched[start:end]
	}
	return matched, total, nil
}

// MaxIdsPerLookup is the largest id set seen by ListByTransactionIds.
func (s *Credentials) MaxIdsPerLookup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxIdsIn
}

func (s *Credentials) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

func (s *Credentials) PageCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCalls
}

type Profiles struct {
	Rows []models.Profile
	Err  error

	mu           sync.Mutex
	searches     int
	maxSearchIds int
}

// Searches is the number of SearchIds calls; MaxSearchIds the largest id set one carried.
func (s *Profiles) Searches() (calls, maxIds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches, s.maxSearchIds
}

func (s *Profiles) ListByIds(ctx context.Context, ids []string) ([]models.Profile, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	wanted := toSet(ids)
	var out []models.Profile
	for _, p := range s.Rows {
		if wanted[p.Id] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Profiles) SearchIds(ctx context.Context, term string, userIds []string) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	s.searches++
	s.maxSearchIds = max(s.maxSearchIds, len(userIds))
	s.mu.Unlock()
	if strings.TrimSpace(term) == "" {
		return nil, nil
	}
	wanted := toSet(userIds)
	var out []string
	for _, p := range s.Rows {
		if !wanted[p.Id] {
			continue
		}
		if utils.ContainsFold(p.Name, term) || utils.ContainsFold(p.Email, term) {
			out = append(out, p.Id)
		}
	}
	return out, nil
}

type Advances struct {
	mu   sync.Mutex
	rows map[string]*models.Advance
	Err  error
}

func (s *Advances) ListByEvent(ctx context.Context, eventId string) ([]*models.Advance, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Advance
	for _, a := range s.rows {
		if a.EventId == eventId {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDate.Before(out[j].PaymentDate) })
	return out, nil
}

func (s *Advances) Get(ctx context.Context, id string) (*models.Advance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *Advances) Create(ctx context.Context, advance *models.Advance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *advance
	s.rows[advance.Id] = &copied
	return nil
}

func (s *Advances) Update(ctx context.Context, advance *models.Advance) error {
	return s.Create(ctx, advance)
}

func (s *Advances) Delete(ctx context.Context, advance *models.Advance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, advance.Id)
	return nil
}

type Fees struct {
	Rows map[string]*models.EventFee
	Err  error
}

func (s *Fees) GetByEvent(ctx context.Context, eventId string) (*models.EventFee, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	fee, ok := s.Rows[eventId]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return fee, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
