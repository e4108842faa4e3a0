package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/jmarlowe/leadpipe/internal/config"
)

// ProcessBatchTask is scheduled each time an upload batch is accepted.
const ProcessBatchTask = "import:process_batch"

// ProcessBatchPayload is serialized into the task so the worker knows which
// staged batch to run.
type ProcessBatchPayload struct {
	BatchID string `json:"batch_id"`
}

// Client enqueues import jobs. Satisfies importer.Enqueuer.
type Client struct {
	inner *asynq.Client
}

// NewClient connects an enqueue-only client to the broker.
func NewClient(cfg config.RedisConfig) *Client {
	return &Client{inner: asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// EnqueueProcessBatch schedules background processing for one batch. Retries
// are bounded; the handler skips batches that already reached a terminal
// state, so a retry after partial processing cannot double-run a batch.
func (c *Client) EnqueueProcessBatch(ctx context.Context, batchID uuid.UUID) error {
	data, err := json.Marshal(ProcessBatchPayload{BatchID: batchID.String()})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ProcessBatchTask, data)
	if _, err := c.inner.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("enqueue process batch task: %w", err)
	}
	return nil
}

// Close releases the broker connection.
func (c *Client) Close() error {
	return c.inner.Close()
}
