// Package sales merges the three channel sources into per-channel and
// per-ticket-type totals for one event.
package sales

import (
	"context"
	"strings"

	"github.com/hunttickets/backoffice_backend/config"
	"github.com/hunttickets/backoffice_backend/metrics"
	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("backoffice/sales")

// Snapshot is the paid transaction set of one event at one point in time.
type Snapshot struct {
	EventId      string
	Tickets      []models.Ticket
	Transactions map[models.Channel][]models.Transaction
}

func (s *Snapshot) TicketIds() []string {
	ids := make([]string, 0, len(s.Tickets))
	for _, t := range s.Tickets {
		ids = append(ids, t.Id)
	}
	return ids
}

// All returns every transaction in channel order.
func (s *Snapshot) All() []models.Transaction {
	var all []models.Transaction
	for _, c := range models.Channels() {
		all = append(all, s.Transactions[c]...)
	}
	return all
}

type Aggregator struct {
	tickets models.TicketStore
	sources []models.TransactionSource
}

func NewAggregator(tickets models.TicketStore, sources []models.TransactionSource) *Aggregator {
	return &Aggregator{tickets: tickets, sources: sources}
}

// Load reads the event's tickets, then every channel's paid transactions concurrently.
// A failing channel fails the whole load with a *utils.FetchError naming it.
func (a *Aggregator) Load(ctx context.Context, eventId string) (*Snapshot, error) {
	if strings.TrimSpace(eventId) == "" {
		return nil, utils.InvalidInput("event id is required")
	}
	ctx, span := tracer.Start(ctx, "sales.Load", trace.WithAttributes(attribute.String("event_id", eventId)))
	defer span.End()

	tickets, err := a.tickets.ListByEvent(ctx, eventId)
	if err != nil {
		config.LogError(config.GetLogger(), "sales", "Load", "list tickets", eventId, err)
		return nil, utils.NewFetchError("tickets", err)
	}
	snapshot := &Snapshot{
		EventId:      eventId,
		Tickets:      tickets,
		Transactions: make(map[models.Channel][]models.Transaction, len(a.sources)),
	}
	if len(tickets) == 0 {
		return snapshot, nil
	}

	ticketIds := snapshot.TicketIds()
	results := make([][]models.Transaction, len(a.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, source := range a.sources {
		g.Go(func() error {
			txs, err := source.ListPaidByTicketIds(gctx, ticketIds)
			if err != nil {
				channel := string(source.Channel())
				metrics.RecordChannelFailure(channel)
				config.LogError(config.GetLogger(), "sales", "Load", "list paid "+channel, eventId, err)
				return utils.NewFetchError(channel, err)
			}
			results[i] = txs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	for i, source := range a.sources {
		paid := make([]models.Transaction, 0, len(results[i]))
		for _, tx := range results[i] {
			if tx.IsPaid() {
				paid = append(paid, tx)
			}
		}
		snapshot.Transactions[source.Channel()] = paid
	}
	return snapshot, nil
}

// PaidStamp merges the channels' paid stamps for the event; the zero stamp
// when nothing was sold.
func (a *Aggregator) PaidStamp(ctx context.Context, eventId string) (models.PaidStamp, error) {
	tickets, err := a.tickets.ListByEvent(ctx, eventId)
	if err != nil {
		return models.PaidStamp{}, utils.NewFetchError("tickets", err)
	}
	if len(tickets) == 0 {
		return models.PaidStamp{}, nil
	}
	ticketIds := (&Snapshot{Tickets: tickets}).TicketIds()

	stamps := make([]models.PaidStamp, len(a.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, source := range a.sources {
		g.Go(func() error {
			stamp, err := source.PaidStamp(gctx, ticketIds)
			if err != nil {
				return utils.NewFetchError(string(source.Channel()), err)
			}
			stamps[i] = stamp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.PaidStamp{}, err
	}

	var total models.PaidStamp
	for _, stamp := range stamps {
		total = total.Add(stamp)
	}
	return total, nil
}
