package utils

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/hunttickets/backoffice_backend/config"
	"github.com/sirupsen/logrus"
)

// ErrLocked is returned when another request holds the lock.
var ErrLocked = errors.New("resource is being modified, retry shortly")

// ObtainLock takes a redis lock on key. When redis is not ready it proceeds
// without a lock and logs a warning; a lock held by someone else is ErrLocked.
// The returned release func is never nil.
func ObtainLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	logger := config.GetLogger()
	redisLock := config.GetRedisLock()
	if redisLock == nil {
		logger.WithFields(logrus.Fields{
			"field": "ObtainLock",
			"key":   key,
		}).Warn("redis lock not ready; proceeding without redis lock")
		return func() {}, nil
	}

	lock, err := redisLock.Obtain(ctx, "lock:"+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return func() {}, ErrLocked
	}
	if err != nil {
		logger.WithFields(logrus.Fields{
			"field": "ObtainLock",
			"key":   key,
		}).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
		return func() {}, nil
	}

	return func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			logger.WithFields(logrus.Fields{
				"field": "ObtainLock",
				"key":   key,
			}).Warn("failed to release redis lock: " + releaseErr.Error())
		}
	}, nil
}
