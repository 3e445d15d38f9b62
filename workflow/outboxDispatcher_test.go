package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/testutils"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/mmdatafocus/ledger_engine/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []config.PubSubMessage
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, msg config.PubSubMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, msg)
	return "msg-" + msg.EventType, nil
}

func outboxEvents(t *testing.T, ctx context.Context) []models.OutboxEvent {
	t.Helper()
	var events []models.OutboxEvent
	require.NoError(t, testutils.DB(utils.SetSkipWorkbenchScopeInContext(ctx, true)).Order("id").Find(&events).Error)
	return events
}

func TestOutboxDispatcher_PublishesPendingEvents(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	record := testutils.CreateTransaction(t, ctx, "Sale", models.DirectionCredit, decimal.NewFromInt(100))
	_, err := workflow.ConfirmRecord(ctx, record.ID, nil)
	require.NoError(t, err)

	pending := outboxEvents(t, ctx)
	require.NotEmpty(t, pending)

	publisher := &fakePublisher{}
	dispatcher := workflow.NewOutboxDispatcher(config.GetDB(), config.GetLogger(), publisher)
	n, err := dispatcher.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(pending), n)
	require.Len(t, publisher.messages, len(pending))

	var revisions []int64
	for _, msg := range publisher.messages {
		revisions = append(revisions, msg.Revision)
	}
	assert.IsIncreasing(t, revisions)
	assert.Equal(t, string(models.AuditActionConfirmRecord), publisher.messages[len(publisher.messages)-1].EventType)

	for _, event := range outboxEvents(t, ctx) {
		assert.Equal(t, models.OutboxPublishStatusSent, event.PublishStatus)
		assert.NotNil(t, event.PubSubMessageId)
		assert.Equal(t, 1, event.PublishAttempts)
	}

	n, err = dispatcher.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxDispatcher_FailureBacksOffThenDies(t *testing.T) {
	ctx := testutils.SetupTestDB(t)

	publisher := &fakePublisher{err: errors.New("broker unavailable")}
	dispatcher := workflow.NewOutboxDispatcher(config.GetDB(), config.GetLogger(), publisher)
	dispatcher.MaxAttempts = 2
	dispatcher.InitialBackoff = 0

	n, err := dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	for _, event := range outboxEvents(t, ctx) {
		assert.Equal(t, models.OutboxPublishStatusFailed, event.PublishStatus)
		require.NotNil(t, event.LastPublishError)
		assert.Equal(t, "broker unavailable", *event.LastPublishError)
	}

	_, err = dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	for _, event := range outboxEvents(t, ctx) {
		assert.Equal(t, models.OutboxPublishStatusDead, event.PublishStatus)
		assert.Equal(t, 2, event.PublishAttempts)
	}
}
