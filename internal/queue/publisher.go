package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourceplane/litejob/internal/model"
)

// MessagePublisher sends one message body to the broker
type MessagePublisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Publisher dispatches fired jobs as BuildRequest messages
type Publisher struct {
	client MessagePublisher
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(client MessagePublisher, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Dispatch wraps job in a BuildRequest and publishes it
func (p *Publisher) Dispatch(ctx context.Context, job model.PlanJob) error {
	req := model.BuildRequest{
		ID:          uuid.NewString(),
		Job:         job,
		RequestedAt: p.now().UTC(),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode build request for %s: %w", job.ID, err)
	}

	if err := p.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to dispatch job %s: %w", job.ID, err)
	}

	p.logger.Info("Build request published",
		slog.String("request_id", req.ID),
		slog.String("job", job.ID),
	)
	return nil
}
