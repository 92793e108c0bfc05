package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/achievement-engine/internal/config"
	"github.com/achievement-engine/internal/domain"
	"github.com/achievement-engine/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu      sync.Mutex
	batches [][]domain.ScoreSubmission
}

func (r *recordingHandler) SubmitScoreBatch(_ context.Context, batch domain.BatchScoreSubmission) ([]service.SubmissionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]domain.ScoreSubmission(nil), batch.Scores...))
	return make([]service.SubmissionResult, len(batch.Scores)), nil
}

func (r *recordingHandler) sizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	sizes := make([]int, len(r.batches))
	for i, b := range r.batches {
		sizes[i] = len(b)
	}
	return sizes
}

type handlerFunc func(ctx context.Context, batch domain.BatchScoreSubmission) ([]service.SubmissionResult, error)

func (f handlerFunc) SubmitScoreBatch(ctx context.Context, batch domain.BatchScoreSubmission) ([]service.SubmissionResult, error) {
	return f(ctx, batch)
}

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string { return "member" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string) {}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return "score-submissions" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func newTestHandler(handler ScoreHandler, batchSize int, timeout time.Duration) *consumerGroupHandler {
	return &consumerGroupHandler{
		consumer: &Consumer{
			config:  &config.KafkaConfig{BatchSize: batchSize, BatchTimeout: timeout},
			handler: handler,
			logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
		ready: make(chan bool),
	}
}

func submissionMessage(t *testing.T, offset int64) *sarama.ConsumerMessage {
	t.Helper()
	data, err := json.Marshal(domain.ScoreSubmission{
		SessionID:    uuid.New(),
		BeatmapMD5:   "a5b99395a42bd55bc5eb1d2411cbdf8b",
		Mods:         domain.Hidden | domain.HardRock,
		GameMode:     domain.ModeOsu,
		FullCombo:    true,
		HighestCombo: 812,
	})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Value: data, Offset: offset}
}

func TestConsumeClaim(t *testing.T) {
	t.Run("flushes full batches and the remainder on close", func(t *testing.T) {
		rec := &recordingHandler{}
		h := newTestHandler(rec, 2, time.Hour)
		session := &fakeSession{ctx: context.Background()}
		claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 5)}

		for i := int64(0); i < 5; i++ {
			claim.messages <- submissionMessage(t, i)
		}
		close(claim.messages)

		require.NoError(t, h.ConsumeClaim(session, claim))
		assert.Equal(t, []int{2, 2, 1}, rec.sizes())
		assert.Equal(t, []int64{1, 3, 4}, session.marked)
	})

	t.Run("drops malformed and invalid messages but marks them", func(t *testing.T) {
		rec := &recordingHandler{}
		h := newTestHandler(rec, 10, time.Hour)
		session := &fakeSession{ctx: context.Background()}
		claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}

		claim.messages <- &sarama.ConsumerMessage{Value: []byte("{not json"), Offset: 0}
		claim.messages <- &sarama.ConsumerMessage{Value: []byte(`{"beatmap_md5":"abc","game_mode":0}`), Offset: 1}
		claim.messages <- submissionMessage(t, 2)
		close(claim.messages)

		require.NoError(t, h.ConsumeClaim(session, claim))
		assert.Equal(t, []int{1}, rec.sizes())
		assert.Equal(t, []int64{0, 1, 2}, session.marked)
	})

	t.Run("a dropped message inside a batch is marked with the batch", func(t *testing.T) {
		rec := &recordingHandler{}
		h := newTestHandler(rec, 10, time.Hour)
		session := &fakeSession{ctx: context.Background()}
		claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}

		claim.messages <- submissionMessage(t, 0)
		claim.messages <- &sarama.ConsumerMessage{Value: []byte("garbage"), Offset: 1}
		claim.messages <- submissionMessage(t, 2)
		close(claim.messages)

		require.NoError(t, h.ConsumeClaim(session, claim))
		assert.Equal(t, []int{2}, rec.sizes())
		assert.Equal(t, []int64{2}, session.marked)
	})

	t.Run("offsets are marked only after evaluation", func(t *testing.T) {
		session := &fakeSession{ctx: context.Background()}
		var markedAtCall []int64
		handler := handlerFunc(func(_ context.Context, batch domain.BatchScoreSubmission) ([]service.SubmissionResult, error) {
			session.mu.Lock()
			markedAtCall = append([]int64(nil), session.marked...)
			session.mu.Unlock()
			return nil, nil
		})
		h := newTestHandler(handler, 2, time.Hour)
		claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 2)}
		claim.messages <- submissionMessage(t, 7)
		claim.messages <- submissionMessage(t, 8)
		close(claim.messages)

		require.NoError(t, h.ConsumeClaim(session, claim))
		assert.Empty(t, markedAtCall)
		assert.Equal(t, []int64{8}, session.marked)
	})

	t.Run("flushes a partial batch when the timer fires", func(t *testing.T) {
		rec := &recordingHandler{}
		h := newTestHandler(rec, 100, 20*time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		session := &fakeSession{ctx: ctx}
		claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
		claim.messages <- submissionMessage(t, 0)

		done := make(chan error, 1)
		go func() { done <- h.ConsumeClaim(session, claim) }()

		assert.Eventually(t, func() bool { return len(rec.sizes()) == 1 }, time.Second, 5*time.Millisecond)
		cancel()
		require.NoError(t, <-done)
		assert.Equal(t, []int{1}, rec.sizes())
	})
}

func TestDecodeSubmission(t *testing.T) {
	sessionID := uuid.New()
	payload := `{"session_id":"` + sessionID.String() + `","beatmap_md5":"abc","mods":1088,"game_mode":1,"full_combo":true,"highest_combo":300}`

	sub, err := decodeSubmission([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, sessionID, sub.SessionID)
	assert.Equal(t, domain.DoubleTime|domain.Flashlight, sub.Mods)
	assert.Equal(t, domain.ModeTaiko, sub.GameMode)
	assert.Equal(t, uint32(300), sub.HighestCombo)

	_, err = decodeSubmission([]byte(`{"beatmap_md5":"abc"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestNewSaramaConfig(t *testing.T) {
	t.Run("retry settings reach the client", func(t *testing.T) {
		cfg := newSaramaConfig(&config.KafkaConfig{RetryAttempts: 7, RetryDelay: 750 * time.Millisecond})
		assert.Equal(t, 7, cfg.Metadata.Retry.Max)
		assert.Equal(t, 750*time.Millisecond, cfg.Metadata.Retry.Backoff)
		assert.Equal(t, 750*time.Millisecond, cfg.Consumer.Retry.Backoff)
		assert.True(t, cfg.Consumer.Return.Errors)
		require.NoError(t, cfg.Validate())
	})

	t.Run("unset retry settings keep the client defaults", func(t *testing.T) {
		defaults := sarama.NewConfig()
		cfg := newSaramaConfig(&config.KafkaConfig{})
		assert.Equal(t, defaults.Metadata.Retry.Max, cfg.Metadata.Retry.Max)
		assert.Equal(t, defaults.Consumer.Retry.Backoff, cfg.Consumer.Retry.Backoff)
	})
}
