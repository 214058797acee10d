package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/netaai/neta-chat/internal/activity"
	"github.com/netaai/neta-chat/internal/config"
	"github.com/netaai/neta-chat/internal/db"
	"github.com/netaai/neta-chat/internal/observability"
	"github.com/netaai/neta-chat/internal/store/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

func fatal(msg string, err error) {
	observability.Logger().Error(msg, "err", err)
	os.Exit(1)
}

type recorder interface {
	Record(ctx context.Context, body []byte) (*activity.Entry, error)
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// handle records one delivery. Buffered deliveries are still drained after
// shutdown starts, so the store call does not inherit ctx cancellation.
func handle(ctx context.Context, log *slog.Logger, rec recorder, body []byte, d acknowledger) {
	start := time.Now()
	e, err := rec.Record(context.WithoutCancel(ctx), body)
	if err != nil {
		log.Warn("activity not recorded", "cost", time.Since(start), "err", err)
		// bad payloads and store failures both go to the DLQ
		_ = d.Nack(false, false)
		return
	}
	if err := d.Ack(false); err != nil {
		log.Warn("ack failed", "entry", e.ID, "err", err)
	}
}

func main() {
	cfg := config.Load()
	log := observability.WithFields("queue", cfg.RabbitQueue)

	if cfg.RabbitURL == "" {
		fatal("worker needs RABBIT_URL", errors.New("RABBIT_URL is empty"))
	}

	gdb, err := db.Open(cfg.DBDSN)
	if err != nil {
		fatal("db open", err)
	}
	if err := db.Migrate(gdb, &activity.Entry{}); err != nil {
		fatal("db migrate", err)
	}
	activityLog := activity.NewLog(gdb)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		fatal("rabbit dial", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		fatal("rabbit channel", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		fatal("queue declare", err)
	}

	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		fatal("qos", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		fatal("consume", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker started", "concurrency", concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With("worker", workerID)
			for d := range jobs {
				handle(ctx, wlog, activityLog, d.Body, d)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}
