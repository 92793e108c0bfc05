package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/achievement-engine/internal/domain"
	"github.com/google/uuid"
)

// modPool holds the modifier combinations generated plays draw from
var modPool = []domain.Mods{
	domain.NoMod,
	domain.Hidden,
	domain.HardRock,
	domain.Hidden | domain.HardRock,
	domain.DoubleTime,
	domain.Hidden | domain.DoubleTime,
	domain.Nightcore | domain.DoubleTime,
	domain.Flashlight,
	domain.Easy,
	domain.NoFail,
	domain.HalfTime,
	domain.SpunOut,
	domain.SuddenDeath,
	domain.Perfect | domain.SuddenDeath,
}

func parseSessions(raw string, count int) ([]uuid.UUID, error) {
	if raw == "" {
		sessions := make([]uuid.UUID, count)
		for i := range sessions {
			sessions[i] = uuid.New()
		}
		return sessions, nil
	}

	var sessions []uuid.UUID
	for _, s := range strings.Split(raw, ",") {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("parsing session id %q: %w", s, err)
		}
		sessions = append(sessions, id)
	}
	return sessions, nil
}

func randomSubmission(sessions []uuid.UUID, beatmaps []string) domain.ScoreSubmission {
	fullCombo := rand.Intn(100) < 15
	combo := uint32(rand.Intn(2500))
	return domain.ScoreSubmission{
		SessionID:    sessions[rand.Intn(len(sessions))],
		BeatmapMD5:   beatmaps[rand.Intn(len(beatmaps))],
		Mods:         modPool[rand.Intn(len(modPool))],
		GameMode:     domain.GameMode(rand.Intn(4)),
		FullCombo:    fullCombo,
		HighestCombo: combo,
		TotalScore:   int64(combo) * int64(rand.Intn(900)+100),
	}
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "score-submissions", "Kafka topic")
	sessionList := flag.String("sessions", "", "Session ids to submit under (comma-separated, random if empty)")
	sessionCount := flag.Int("session-count", 100, "Number of random session ids when -sessions is empty")
	beatmapList := flag.String("beatmaps", "a5b99395a42bd55bc5eb1d2411cbdf8b", "Beatmap md5s to submit against (comma-separated)")
	rate := flag.Int("rate", 100, "Submissions per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")
	beatmaps := strings.Split(*beatmapList, ",")
	sessions, err := parseSessions(*sessionList, *sessionCount)
	if err != nil {
		log.Fatalf("Invalid sessions: %v", err)
	}
	if len(sessions) == 0 || *rate <= 0 {
		log.Fatal("Need at least one session and a positive rate")
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Score Submission Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", *brokers)
	fmt.Printf("  Topic:            %s\n", *topic)
	fmt.Printf("  Sessions:         %d\n", len(sessions))
	fmt.Printf("  Beatmaps:         %d\n", len(beatmaps))
	fmt.Printf("  Submissions/sec:  %d\n", *rate)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	shutdown := func(reason string) {
		fmt.Printf("\n\n%s, shutting down...\n", reason)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\nCompleted. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var produced int64
	for {
		select {
		case <-sigChan:
			shutdown("Interrupted")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				shutdown("Duration reached")
				return
			}

			submission := randomSubmission(sessions, beatmaps)
			data, err := json.Marshal(submission)
			if err != nil {
				log.Printf("Failed to marshal message: %v", err)
				continue
			}

			// keyed by session so one account's plays stay ordered on a partition
			producer.Input() <- &sarama.ProducerMessage{
				Topic: *topic,
				Key:   sarama.StringEncoder(submission.SessionID.String()),
				Value: sarama.ByteEncoder(data),
			}
			atomic.AddInt64(&produced, 1)

		case <-statsTicker.C:
			fmt.Printf("[%s] Produced: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&produced),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
