package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/corezen/corezen/internal/posting"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client enqueues warm-ups after postings. It is a posting.Notifier.
type Client struct {
	client enqueuer
}

var _ posting.Notifier = (*Client)(nil)

// NewClient constructs an Asynq-backed client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueReportsWarm schedules a projection warm-up for the tenant. Repeated
// requests within the unique window are dropped.
func (c *Client) EnqueueReportsWarm(ctx context.Context, tenantID int64) error {
	task, err := NewReportsWarmTask(tenantID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.Unique(warmUniqueWindow),
		asynq.ProcessIn(time.Second),
		asynq.MaxRetry(3),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// Posted implements posting.Notifier.
func (c *Client) Posted(ctx context.Context, tenantID int64, _ posting.Event) error {
	return c.EnqueueReportsWarm(ctx, tenantID)
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
