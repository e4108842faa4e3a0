package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/jmarlowe/leadpipe/internal/importer"
	"github.com/jmarlowe/leadpipe/internal/queue"
)

// Processor is plugged into the asynq worker loop. Each task runs one batch
// to a terminal state.
type Processor struct {
	imports *importer.Service
	logger  *logrus.Entry
}

// NewProcessor constructs a worker processor.
func NewProcessor(imports *importer.Service, logger *logrus.Logger) *Processor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Processor{
		imports: imports,
		logger:  logger.WithField("component", "worker"),
	}
}

// Handler registers the batch processing handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ProcessBatchTask, p.handleProcessBatch)
	return mux
}

func (p *Processor) handleProcessBatch(ctx context.Context, task *asynq.Task) error {
	var payload queue.ProcessBatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	batchID, err := uuid.Parse(payload.BatchID)
	if err != nil {
		return fmt.Errorf("invalid batch id %q: %w", payload.BatchID, err)
	}

	p.logger.WithField("batch_id", batchID).Info("processing batch")
	if err := p.imports.Process(ctx, batchID); err != nil {
		p.logger.WithError(err).WithField("batch_id", batchID).Error("batch processing failed")
		return err
	}
	return nil
}
