package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

const (
	// TaskDeliver is the asynq task type for outgoing mail.
	TaskDeliver = "email:deliver"
	queueName   = "email"
)

// Enqueuer hands a message to a background worker. The auth flows treat
// enqueue failures as non-fatal; delivery is best-effort from their side.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg Message) error
}

// Dispatcher enqueues delivery tasks on Redis via asynq.
type Dispatcher struct {
	client *asynq.Client
}

// NewDispatcher returns a Dispatcher using the given Redis address.
func NewDispatcher(redisAddr string) *Dispatcher {
	return &Dispatcher{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
	}
}

// Enqueue queues one delivery task.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskDeliver, payload)
	if _, err := d.client.EnqueueContext(ctx, task, asynq.Queue(queueName), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("email: enqueue: %w", err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (d *Dispatcher) Close() error {
	return d.client.Close()
}

// SyncEnqueuer delivers inline through a Mailer instead of queueing. Used when
// no Redis is configured.
type SyncEnqueuer struct {
	Mailer Mailer
}

func (s SyncEnqueuer) Enqueue(ctx context.Context, msg Message) error {
	return s.Mailer.Send(ctx, msg)
}

// Worker consumes delivery tasks and sends them through the Mailer.
type Worker struct {
	server *asynq.Server
	mailer Mailer
}

// NewWorker returns a Worker bound to the given Redis address and mailer.
func NewWorker(redisAddr string, mailer Mailer) *Worker {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: 4,
			Queues:      map[string]int{queueName: 1},
		},
	)
	return &Worker{server: server, mailer: mailer}
}

// Run blocks, processing delivery tasks until Shutdown.
func (w *Worker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskDeliver, w.handleDeliver)
	return w.server.Run(mux)
}

// Shutdown stops the worker gracefully.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleDeliver(ctx context.Context, task *asynq.Task) error {
	var msg Message
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		// Malformed payloads never become deliverable; skip retries.
		return fmt.Errorf("email: bad payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.mailer.Send(ctx, msg); err != nil {
		return err
	}
	log.Printf("email: delivered %q to %s", msg.Subject, msg.To)
	return nil
}
