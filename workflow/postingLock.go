package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/sirupsen/logrus"
)

// obtainRecordLock takes the per-record posting lock in redis. The lock only
// keeps concurrent confirmations from racing to the database; the status
// compare-and-swap stays the source of truth, so a redis outage degrades to
// running without the lock.
func obtainRecordLock(ctx context.Context, workbenchId string, recordId int) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}
	key := fmt.Sprintf("ledger:lock:%s:record:%d", workbenchId, recordId)
	lock, err := locker.Obtain(ctx, key, config.ConfirmLockTTL(), nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, utils.ErrConfirmationInProgress
		}
		config.GetLogger().WithFields(logrus.Fields{
			"field":        "PostingLock",
			"workbench_id": workbenchId,
			"record_id":    recordId,
		}).Warn("redis lock unavailable, continuing without it: " + err.Error())
		return func() {}, nil
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.GetLogger().WithFields(logrus.Fields{
				"field":     "PostingLock",
				"record_id": recordId,
			}).Warn("failed to release lock: " + err.Error())
		}
	}, nil
}
