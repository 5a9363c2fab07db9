package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/config"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/logging"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

const (
	CompilationQueueName   = "compilation_jobs"
	ExchangeName           = "compilation"
	DeadLetterQueueName    = "compilation_jobs_dlq"
	DeadLetterExchangeName = "compilation_dlq"
)

// ErrDeliveriesClosed is returned by Consume when the broker closes the
// delivery stream before the consumer was asked to stop
var ErrDeliveriesClosed = errors.New("delivery channel closed by broker")

// Handler processes one task. Its error is informational: tasks are never redelivered.
type Handler func(ctx context.Context, task models.CompilationTask) error

// Queue provides message queue operations
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logging.Logger

	// amqp channels are not safe for concurrent publishing
	pubMu sync.Mutex
}

// URL builds the AMQP connection string
func URL(cfg config.QueueConfig) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)
}

// New creates a new queue client and declares the topology
func New(cfg config.QueueConfig, logger *logging.Logger) (*Queue, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	conn, err := amqp.Dial(URL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &Queue{
		conn:    conn,
		channel: channel,
		logger:  logger,
	}, nil
}

func declareTopology(channel *amqp.Channel) error {
	// Dead letter side first so the main queue can reference it
	err := channel.ExchangeDeclare(
		DeadLetterExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		DeadLetterQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	err = channel.QueueBind(DeadLetterQueueName, DeadLetterQueueName, DeadLetterExchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		CompilationQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		deadLetterArgs(),
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = channel.QueueBind(CompilationQueueName, CompilationQueueName, ExchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// deadLetterArgs routes rejected messages to the DLQ
func deadLetterArgs() amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchangeName,
		"x-dead-letter-routing-key": DeadLetterQueueName,
	}
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// Dispatch publishes a compilation task
func (q *Queue) Dispatch(ctx context.Context, task models.CompilationTask) error {
	msg, err := encodeTask(task)
	if err != nil {
		return err
	}

	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	err = q.channel.PublishWithContext(ctx,
		ExchangeName,
		CompilationQueueName,
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	return nil
}

func encodeTask(task models.CompilationTask) (amqp.Publishing, error) {
	body, err := json.Marshal(task)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal job: %w", err)
	}

	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    task.JobID,
		Body:         body,
		Timestamp:    time.Now(),
	}, nil
}

func decodeTask(body []byte) (models.CompilationTask, error) {
	var task models.CompilationTask
	if err := json.Unmarshal(body, &task); err != nil {
		return task, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if task.JobID == "" {
		return task, errors.New("message has no jobId")
	}
	return task, nil
}

// Consume delivers tasks to handler on prefetch concurrent goroutines until
// ctx is done. It returns ErrDeliveriesClosed if the broker closes the
// stream first. Every decoded task is acked after handling; undecodable
// messages are rejected to the dead letter queue.
func (q *Queue) Consume(ctx context.Context, prefetch int, handler Handler) error {
	if prefetch <= 0 {
		prefetch = 1
	}

	// Set QoS to limit concurrent processing
	err := q.channel.Qos(
		prefetch, // prefetch count
		0,        // prefetch size
		false,    // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		CompilationQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	return q.consumeDeliveries(ctx, msgs, prefetch, handler)
}

// consumeDeliveries runs workers over msgs until ctx is done or msgs closes.
// A close while ctx is still live means the connection was lost.
func (q *Queue) consumeDeliveries(ctx context.Context, msgs <-chan amqp.Delivery, workers int, handler Handler) error {
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.consumeLoop(ctx, msgs, handler)
		}()
	}
	wg.Wait()

	if ctx.Err() == nil {
		return ErrDeliveriesClosed
	}
	return nil
}

func (q *Queue) consumeLoop(ctx context.Context, msgs <-chan amqp.Delivery, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			q.handle(ctx, msg, handler)
		}
	}
}

func (q *Queue) handle(ctx context.Context, msg amqp.Delivery, handler Handler) {
	task, err := decodeTask(msg.Body)
	if err != nil {
		q.logger.WithError(err).WithField("message_id", msg.MessageId).Warn("Rejecting undecodable message")
		if nerr := msg.Nack(false, false); nerr != nil {
			q.logger.WithError(nerr).Warn("Failed to nack message")
		}
		return
	}

	if err := handler(ctx, task); err != nil {
		q.logger.WithJobID(task.JobID).WithError(err).Info("Job finished with error")
	}

	if err := msg.Ack(false); err != nil {
		q.logger.WithJobID(task.JobID).WithError(err).Warn("Failed to ack message")
	}
}

// Depth returns the number of messages waiting in the queue
func (q *Queue) Depth() (int, error) {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	info, err := q.channel.QueueInspect(CompilationQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}
