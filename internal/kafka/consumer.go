package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/achievement-engine/internal/config"
	"github.com/achievement-engine/internal/domain"
	"github.com/achievement-engine/internal/service"
)

// batchProcessTimeout bounds the evaluation of one flushed batch
const batchProcessTimeout = 10 * time.Second

// ScoreHandler evaluates score submissions for achievements
type ScoreHandler interface {
	SubmitScoreBatch(ctx context.Context, batch domain.BatchScoreSubmission) ([]service.SubmissionResult, error)
}

// Consumer consumes score submissions from Kafka and feeds them to the achievement pipeline
type Consumer struct {
	config        *config.KafkaConfig
	handler       ScoreHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// newSaramaConfig builds the consumer group configuration. RetryAttempts bounds
// metadata refreshes; RetryDelay is the backoff for both metadata and partition reads.
func newSaramaConfig(cfg *config.KafkaConfig) *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	if cfg.RetryAttempts > 0 {
		saramaConfig.Metadata.Retry.Max = cfg.RetryAttempts
	}
	if cfg.RetryDelay > 0 {
		saramaConfig.Metadata.Retry.Backoff = cfg.RetryDelay
		saramaConfig.Consumer.Retry.Backoff = cfg.RetryDelay
	}
	return saramaConfig
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler ScoreHandler, logger *slog.Logger) (*Consumer, error) {
	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, newSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("Kafka consumer ready")

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim batches submissions from one partition. Offsets are marked only
// after the batch that covers them has been evaluated.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	b := &claimBatcher{
		handler: h.consumer.handler,
		logger:  h.consumer.logger,
		session: session,
		pending: make([]domain.ScoreSubmission, 0, cfg.BatchSize),
	}
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	for {
		select {
		case <-session.Context().Done():
			b.flush()
			return nil

		case <-batchTimer.C:
			b.flush()
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				b.flush()
				return nil
			}

			submission, err := decodeSubmission(message.Value)
			if err != nil {
				h.consumer.logger.Warn("dropping score message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				b.skip(message)
				continue
			}

			b.add(submission, message)
			if len(b.pending) >= cfg.BatchSize {
				b.flush()
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}

// claimBatcher accumulates decoded submissions for one claim together with the
// newest message they cover
type claimBatcher struct {
	handler ScoreHandler
	logger  *slog.Logger
	session sarama.ConsumerGroupSession
	pending []domain.ScoreSubmission
	last    *sarama.ConsumerMessage
}

func (b *claimBatcher) add(submission domain.ScoreSubmission, message *sarama.ConsumerMessage) {
	b.pending = append(b.pending, submission)
	b.last = message
}

// skip accounts for an undecodable message. With nothing pending it is marked at
// once; otherwise it is covered by the next flush.
func (b *claimBatcher) skip(message *sarama.ConsumerMessage) {
	if b.last == nil {
		b.session.MarkMessage(message, "")
		return
	}
	b.last = message
}

// flush evaluates the pending batch and marks the newest covered offset.
// A failed batch is logged and still marked; retries belong to the producer.
func (b *claimBatcher) flush() {
	if b.last == nil {
		return
	}

	if len(b.pending) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), batchProcessTimeout)
		results, err := b.handler.SubmitScoreBatch(ctx, domain.BatchScoreSubmission{Scores: b.pending})
		cancel()

		if err != nil {
			b.logger.Error("failed to process batch", "error", err, "batch_size", len(b.pending))
		} else {
			unlocked := 0
			for _, r := range results {
				unlocked += len(r.Unlocked)
			}
			b.logger.Debug("processed batch",
				"batch_size", len(b.pending),
				"accepted", len(results),
				"unlocked", unlocked,
			)
		}
	}

	b.session.MarkMessage(b.last, "")
	b.pending = b.pending[:0]
	b.last = nil
}

// decodeSubmission parses and validates one message payload
func decodeSubmission(value []byte) (domain.ScoreSubmission, error) {
	var submission domain.ScoreSubmission
	if err := json.Unmarshal(value, &submission); err != nil {
		return domain.ScoreSubmission{}, fmt.Errorf("unmarshaling submission: %w", err)
	}
	if err := submission.Validate(); err != nil {
		return domain.ScoreSubmission{}, err
	}
	return submission, nil
}
