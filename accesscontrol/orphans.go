package accesscontrol

import (
	"context"
	"strings"
	"time"

	"github.com/hunttickets/backoffice_backend/config"
	"github.com/hunttickets/backoffice_backend/metrics"
	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type OrphanCredential struct {
	Id            string    `json:"id"`
	TransactionId string    `json:"transaction_id"`
	UserId        string    `json:"user_id"`
	Scanned       bool      `json:"scanned"`
	CreatedAt     time.Time `json:"created_at"`
}

type OrphanReport struct {
	EventId               string                 `json:"event_id"`
	TotalCredentials      int                    `json:"total_credentials"`
	AssociatedCredentials int                    `json:"associated_credentials"`
	ByChannel             map[models.Channel]int `json:"by_channel"`
	OrphanCount           int                    `json:"orphan_count"`
	Orphans               []OrphanCredential     `json:"orphans"`
}

// Classification splits credentials between the channel that owns their
// transaction and the orphans. Each credential lands in exactly one bucket.
type Classification struct {
	Associated map[models.Channel][]models.Credential
	Orphans    []models.Credential
}

// ClassifyCredentials assigns each credential to the first channel (app, web,
// cash) whose id set holds its transaction id. A credential found in none of
// the sets is an orphan. The id sets must be complete, not a page of them.
func ClassifyCredentials(credentials []models.Credential, idSets map[models.Channel][]string) Classification {
	owner := make(map[string]models.Channel)
	channels := models.Channels()
	for i := len(channels) - 1; i >= 0; i-- {
		for _, id := range idSets[channels[i]] {
			owner[id] = channels[i]
		}
	}

	result := Classification{Associated: make(map[models.Channel][]models.Credential, len(channels))}
	for _, c := range credentials {
		channel, ok := owner[c.TransactionId]
		if !ok {
			result.Orphans = append(result.Orphans, c)
			continue
		}
		result.Associated[channel] = append(result.Associated[channel], c)
	}
	return result
}

// transactionIdSets reads every channel's transaction ids for the event, in all
// statuses. Any failing channel fails the call: an incomplete union would turn
// valid credentials into false orphans.
func (e *Engine) transactionIdSets(ctx context.Context, eventId string) (map[models.Channel][]string, error) {
	tickets, err := e.tickets.ListByEvent(ctx, eventId)
	if err != nil {
		config.LogError(config.GetLogger(), "accesscontrol", "transactionIdSets", "list tickets", eventId, err)
		return nil, utils.NewFetchError("tickets", err)
	}
	ticketIds := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ticketIds = append(ticketIds, t.Id)
	}

	sets := make([][]string, len(e.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, source := range e.sources {
		g.Go(func() error {
			ids, err := source.ListIdsByTicketIds(gctx, ticketIds)
			if err != nil {
				channel := string(source.Channel())
				metrics.RecordChannelFailure(channel)
				config.LogError(config.GetLogger(), "accesscontrol", "transactionIdSets", "list ids "+channel, eventId, err)
				return utils.NewFetchError(channel, err)
			}
			sets[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[models.Channel][]string, len(e.sources))
	for i, source := range e.sources {
		out[source.Channel()] = append(out[source.Channel()], sets[i]...)
	}
	return out, nil
}

// DetectOrphans finds the event's credentials whose transaction exists in no channel.
func (e *Engine) DetectOrphans(ctx context.Context, eventId string) (*OrphanReport, error) {
	if strings.TrimSpace(eventId) == "" {
		return nil, utils.InvalidInput("event id is required")
	}
	ctx, span := tracer.Start(ctx, "accesscontrol.DetectOrphans")
	defer span.End()
	span.SetAttributes(attribute.String("event_id", eventId))
	started := time.Now()

	var (
		idSets      map[models.Channel][]string
		credentials []models.Credential
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		idSets, err = e.transactionIdSets(gctx, eventId)
		return err
	})
	g.Go(func() error {
		var err error
		credentials, _, err = e.credentials.ListByEvent(gctx, eventId, models.CredentialFilter{}, models.Page{})
		if err != nil {
			config.LogError(config.GetLogger(), "accesscontrol", "DetectOrphans", "list credentials", eventId, err)
			return utils.NewFetchError("credentials", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	classified := ClassifyCredentials(credentials, idSets)
	report := &OrphanReport{
		EventId:          eventId,
		TotalCredentials: len(credentials),
		ByChannel:        make(map[models.Channel]int, 3),
		OrphanCount:      len(classified.Orphans),
		Orphans:          make([]OrphanCredential, 0, len(classified.Orphans)),
	}
	for _, c := range models.Channels() {
		report.ByChannel[c] = len(classified.Associated[c])
		report.AssociatedCredentials += len(classified.Associated[c])
	}
	for _, c := range classified.Orphans {
		report.Orphans = append(report.Orphans, OrphanCredential{
			Id:            c.Id,
			TransactionId: c.TransactionId,
			UserId:        c.UserId,
			Scanned:       c.Scanned,
			CreatedAt:     c.CreatedAt,
		})
	}

	span.SetAttributes(attribute.Int("orphans", report.OrphanCount))
	metrics.RecordOrphans(eventId, report.OrphanCount)
	metrics.RecordReport("orphan_detection", time.Since(started).Seconds())
	return report, nil
}
