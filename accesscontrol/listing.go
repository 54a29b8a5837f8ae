package accesscontrol

import (
	"context"
	"strings"
	"time"

	"github.com/hunttickets/backoffice_backend/batch"
	"github.com/hunttickets/backoffice_backend/config"
	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

type ListInput struct {
	EventId  string          `json:"event_id"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Search   string          `json:"search,omitempty"`
	Scanned  *bool           `json:"scanned,omitempty"`
	Source   *models.Channel `json:"source,omitempty"`
}

func (in *ListInput) normalize() error {
	in.EventId = strings.TrimSpace(in.EventId)
	in.Search = strings.TrimSpace(in.Search)
	if in.EventId == "" {
		return utils.InvalidInput("event id is required")
	}
	if in.Page == 0 {
		in.Page = 1
	}
	if in.Page < 1 {
		return utils.InvalidInput("page must be >= 1, got %d", in.Page)
	}
	if in.PageSize == 0 {
		in.PageSize = DefaultPageSize
	}
	if in.PageSize < 1 || in.PageSize > MaxPageSize {
		return utils.InvalidInput("page size must be between 1 and %d, got %d", MaxPageSize, in.PageSize)
	}
	if in.Source != nil && !in.Source.IsValid() {
		return utils.InvalidInput("unknown source %q", *in.Source)
	}
	return nil
}

func (in ListInput) offset() int {
	return (in.Page - 1) * in.PageSize
}

type CredentialRow struct {
	Id            string          `json:"id"`
	TransactionId string          `json:"transaction_id"`
	Channel       *models.Channel `json:"channel"`
	TicketId      string          `json:"ticket_id,omitempty"`
	TicketName    string          `json:"ticket_name,omitempty"`
	UserId        string          `json:"user_id"`
	UserName      string          `json:"user_name,omitempty"`
	UserEmail     string          `json:"user_email,omitempty"`
	Scanned       bool            `json:"scanned"`
	ScannerId     *string         `json:"scanner_id,omitempty"`
	ScannerName   string          `json:"scanner_name,omitempty"`
	AppleWallet   bool            `json:"apple_wallet"`
	GoogleWallet  bool            `json:"google_wallet"`
	CreatedAt     time.Time       `json:"created_at"`
}

type CredentialPage struct {
	Data       []CredentialRow `json:"data"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// ListCredentials pages through the event's credentials, newest first. Without
// a search term or source filter the store paginates; otherwise the event's
// credentials are filtered in memory so the source can be resolved per row.
func (e *Engine) ListCredentials(ctx context.Context, in ListInput) (*CredentialPage, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "accesscontrol.ListCredentials")
	defer span.End()
	span.SetAttributes(
		attribute.String("event_id", in.EventId),
		attribute.Int("page", in.Page),
		attribute.Int("page_size", in.PageSize),
	)

	filter := models.CredentialFilter{Scanned: in.Scanned}
	var (
		rows  []models.Credential
		total int64
		err   error
	)
	if in.Search == "" && in.Source == nil {
		rows, total, err = e.credentials.ListByEvent(ctx, in.EventId, filter, models.Page{Offset: in.offset(), Limit: in.PageSize})
		if err != nil {
			config.LogError(config.GetLogger(), "accesscontrol", "ListCredentials", "list credentials", in, err)
			span.RecordError(err)
			return nil, utils.NewFetchError("credentials", err)
		}
	} else {
		rows, total, err = e.filteredPage(ctx, in, filter)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	data, err := e.decorate(ctx, in.EventId, rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(in.PageSize) - 1) / int64(in.PageSize))
	}
	return &CredentialPage{
		Data:       data,
		TotalCount: total,
		Page:       in.Page,
		PageSize:   in.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (e *Engine) filteredPage(ctx context.Context, in ListInput, filter models.CredentialFilter) ([]models.Credential, int64, error) {
	var (
		all    []models.Credential
		idSets map[models.Channel][]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, _, err = e.credentials.ListByEvent(gctx, in.EventId, filter, models.Page{})
		if err != nil {
			config.LogError(config.GetLogger(), "accesscontrol", "filteredPage", "list credentials", in, err)
			return utils.NewFetchError("credentials", err)
		}
		return nil
	})
	if in.Source != nil {
		g.Go(func() error {
			var err error
			idSets, err = e.transactionIdSets(gctx, in.EventId)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	matched := all
	if in.Source != nil {
		matched = ClassifyCredentials(all, idSets).Associated[*in.Source]
	}
	if in.Search != "" {
		users, err := e.searchHolders(ctx, in.Search, matched)
		if err != nil {
			return nil, 0, err
		}
		kept := make([]models.Credential, 0, len(matched))
		for _, c := range matched {
			if users[c.UserId] || utils.ContainsFold(c.Id, in.Search) || utils.ContainsFold(c.TransactionId, in.Search) {
				kept = append(kept, c)
			}
		}
		matched = kept
	}

	total := int64(len(matched))
	start := min(in.offset(), len(matched))
	end := min(start+in.PageSize, len(matched))
	return matched[start:end], total, nil
}

// searchHolders returns the holders of credentials whose profile matches term.
// Only the holders' ids are searched, in chunks, so no match is cut off.
func (e *Engine) searchHolders(ctx context.Context, term string, credentials []models.Credential) (map[string]bool, error) {
	userIds := make([]string, 0, len(credentials))
	for _, c := range credentials {
		if c.UserId != "" {
			userIds = append(userIds, c.UserId)
		}
	}
	userIds = utils.UniqueSlice(userIds)

	res, err := batch.ChunkedFetch(ctx, userIds, e.opts, func(ctx context.Context, chunk []string) ([]string, error) {
		return e.profiles.SearchIds(ctx, term, chunk)
	})
	if err != nil {
		return nil, err
	}
	if res.Partial() {
		ce := res.Errors[0]
		config.LogError(config.GetLogger(), "accesscontrol", "searchHolders", "search profiles", term, ce.Err)
		return nil, utils.NewFetchError("profiles", ce.Err)
	}
	users := make(map[string]bool, len(res.Items))
	for _, id := range res.Items {
		users[id] = true
	}
	return users, nil
}

// decorate joins a page of credentials with profiles, transactions and ticket names.
func (e *Engine) decorate(ctx context.Context, eventId string, rows []models.Credential) ([]CredentialRow, error) {
	if len(rows) == 0 {
		return []CredentialRow{}, nil
	}

	profileIds := make([]string, 0, len(rows)*2)
	txIds := make([]string, 0, len(rows))
	for _, c := range rows {
		profileIds = append(profileIds, c.UserId)
		if c.ScannerId != nil {
			profileIds = append(profileIds, *c.ScannerId)
		}
		txIds = append(txIds, c.TransactionId)
	}

	var (
		profiles   map[string]models.Profile
		tickets    []models.Ticket
		perChannel = make([]map[string]models.Transaction, len(e.sources))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profiles, err = batch.LoadByID(gctx, profileIds, e.opts, e.profiles.ListByIds, func(p models.Profile) string { return p.Id })
		if err != nil {
			config.LogError(config.GetLogger(), "accesscontrol", "decorate", "load profiles", eventId, err)
			return utils.NewFetchError("profiles", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tickets, err = e.tickets.ListByEvent(gctx, eventId)
		if err != nil {
			config.LogError(config.GetLogger(), "accesscontrol", "decorate", "list tickets", eventId, err)
			return utils.NewFetchError("tickets", err)
		}
		return nil
	})
	for i, source := range e.sources {
		g.Go(func() error {
			txs, err := batch.LoadByID(gctx, txIds, e.opts, source.ListByIds, func(t models.Transaction) string { return t.Id })
			if err != nil {
				channel := string(source.Channel())
				config.LogError(config.GetLogger(), "accesscontrol", "decorate", "load transactions "+channel, eventId, err)
				return utils.NewFetchError(channel, err)
			}
			perChannel[i] = txs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ticketNames := make(map[string]string, len(tickets))
	for _, t := range tickets {
		ticketNames[t.Id] = t.Name
	}

	out := make([]CredentialRow, 0, len(rows))
	for _, c := range rows {
		row := CredentialRow{
			Id:            c.Id,
			TransactionId: c.TransactionId,
			UserId:        c.UserId,
			Scanned:       c.Scanned,
			ScannerId:     c.ScannerId,
			AppleWallet:   c.AppleWallet,
			GoogleWallet:  c.GoogleWallet,
			CreatedAt:     c.CreatedAt,
		}
		if p, ok := profiles[c.UserId]; ok {
			row.UserName = p.Name
			row.UserEmail = p.Email
		}
		if c.ScannerId != nil {
			row.ScannerName = profiles[*c.ScannerId].Name
		}
		for _, txs := range perChannel {
			if tx, ok := txs[c.TransactionId]; ok {
				channel := tx.Channel
				row.Channel = &channel
				row.TicketId = tx.TicketId
				row.TicketName = ticketNames[tx.TicketId]
				break
			}
		}
		out = append(out, row)
	}
	return out, nil
}
