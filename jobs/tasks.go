package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity verifies that trial balance debits equal credits.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskPartyReconcile refreshes cached party balances against the journal.
	TaskPartyReconcile = "ledger:reconcile"
	// TaskReportWarmup pre-populates report caches for the current period.
	TaskReportWarmup = "ledger:report_warmup"
)

// IntegrityPayload carries the cut-off for a trial balance check.
type IntegrityPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewIntegrityTask constructs an Asynq task for a trial balance check.
func NewIntegrityTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(IntegrityPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// ReconcilePayload carries scheduling metadata for balance reconciliation.
type ReconcilePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewReconcileTask constructs an Asynq task for party balance reconciliation.
func NewReconcileTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ReconcilePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPartyReconcile, body, asynq.Queue(QueueDefault)), nil
}

// WarmupPayload selects how many trailing months of reports to pre-build.
type WarmupPayload struct {
	Months int `json:"months"`
}

// NewWarmupTask constructs an Asynq task for report cache warmup.
func NewWarmupTask(months int) (*asynq.Task, error) {
	body, err := json.Marshal(WarmupPayload{Months: months})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, body, asynq.Queue(QueueDefault)), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueIntegrityCheck enqueues a trial balance check for the given cut-off.
func (c *Client) EnqueueIntegrityCheck(ctx context.Context, asOf time.Time) (*asynq.TaskInfo, error) {
	task, err := NewIntegrityTask(asOf)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// EnqueueReconcile enqueues a party balance reconciliation run.
func (c *Client) EnqueueReconcile(ctx context.Context, at time.Time) (*asynq.TaskInfo, error) {
	task, err := NewReconcileTask(at)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
