package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/hunttickets/backoffice_backend/config"
	"github.com/hunttickets/backoffice_backend/models"
	"github.com/hunttickets/backoffice_backend/utils"
	"github.com/sirupsen/logrus"
)

// reportCacheKey changes whenever the paid set changes (a new sale, a status change
// into or out of paid) or the fee record is edited.
func reportCacheKey(eventId string, paid models.PaidStamp, feeUpdatedAt time.Time) string {
	return fmt.Sprintf("FinancialReport:%s:%d:%d:%d", eventId, unixOrZero(paid.LatestAt), paid.Count, unixOrZero(feeUpdatedAt))
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func cacheGet[T any](ctx context.Context, key string, dest *T) (bool, error) {
	return config.GetRedisObject(ctx, key, dest)
}

func cacheSet(ctx context.Context, key string, obj any, ttl time.Duration) error {
	return config.SetRedisObject(ctx, key, obj, ttl)
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra logrus.Fields) {
	d := time.Since(started)
	if d < config.ReportSlowThreshold() {
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	fields := logrus.Fields{
		"report":         name,
		"ms":             d.Milliseconds(),
		"correlation_id": cid,
	}
	for k, v := range extra {
		fields[k] = v
	}
	config.GetLogger().WithFields(fields).Warn("slow_report")
}
