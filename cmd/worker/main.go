package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/ariadne/backend/internal/queue"
	"github.com/OFFIS-RIT/ariadne/backend/internal/util"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/artifact"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/leaselock"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/loader/s3"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger/console"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/pipeline"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/progress"
	storepgx "github.com/OFFIS-RIT/ariadne/backend/pkg/store/pgx"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Init pgx client
	databaseURL := util.GetEnv("DATABASE_URL")
	if err := storepgx.RunMigrations(databaseURL, util.GetEnvString("MIGRATIONS_PATH", "migrations")); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}
	pgConn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	documents := storepgx.NewDocumentDBStorage(storepgx.NewDocumentDBStorageParams{Conn: pgConn})

	tracker, err := progress.NewTracker(progress.NewTrackerParams{
		CacheDir: util.GetEnvString("PROGRESS_CACHE_DIR", "data/cache"),
	})
	if err != nil {
		logger.Fatal("Failed to create progress tracker", "err", err)
	}

	artifacts := artifact.NewStore(artifact.NewStoreParams{
		OutputDir: util.GetEnvString("INDEXER_OUTPUT_DIR", "data/output"),
	})

	fileLoader, err := s3.NewS3GraphFileLoader(ctx, s3.NewS3GraphFileLoaderParams{
		Bucket:    util.GetEnv("AWS_BUCKET"),
		Endpoint:  util.GetEnv("AWS_ENDPOINT"),
		Region:    util.GetEnv("AWS_REGION"),
		AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
		SecretKey: util.GetEnv("AWS_SECRET_KEY"),
	})
	if err != nil {
		logger.Fatal("Failed to create file loader", "err", err)
	}
	extractor := pipeline.NewLoaderExtractor(pipeline.NewLoaderExtractorParams{Source: fileLoader})

	orchestrator := pipeline.NewOrchestrator(pipeline.NewOrchestratorParams{
		Documents: documents,
		Tracker:   tracker,
		Artifacts: artifacts,
		Extractor: extractor,
		Command:   strings.Fields(util.GetEnvString("INDEXER_COMMAND", "graphrag index")),
		Settings: pipeline.NewIndexerSettingsParams{
			Model:        util.GetEnv("AI_INDEXER_MODEL"),
			APIBase:      util.GetEnv("AI_CHAT_URL"),
			ChunkSize:    int(util.GetEnvNumeric("INDEXER_CHUNK_SIZE", 0)),
			ChunkOverlap: int(util.GetEnvNumeric("INDEXER_CHUNK_OVERLAP", 0)),
		},
	})
	locks := leaselock.New(pgConn)

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	queues := []string{queue.IndexQueue}
	if err := queue.SetupQueues(ch, queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	logger.Info("Listening for messages")

	// Prefetch bounds how many documents one worker indexes at a time,
	// defaulting to one.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	prefetch := int(util.GetEnvNumeric("WORKER_PREFETCH", 1))
	err = consumerCh.Qos(prefetch, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.IndexQueue:
					processingErr = queue.ProcessIndexMessage(ctx, orchestrator, locks, string(qm.msg.Body))
				}

				// If there was an error send to retry or dead-letter, otherwise ack the message
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					handleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					err = qm.msg.Ack(false)
					if err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				processingDuration := time.Since(startTime)
				hours := int(processingDuration.Hours())
				minutes := int(processingDuration.Minutes()) % 60
				seconds := int(processingDuration.Seconds()) % 60
				logger.Info(
					"Processing time",
					"duration", fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds),
				)
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func handleProcessingError(ch *amqp.Channel, msg amqp.Delivery, queueName string) {
	retries := 0
	if val, ok := msg.Headers["x-retries"]; ok {
		if v, ok := val.(int32); ok {
			retries = int(v)
		}
	}

	// If message has been retried 10 times, send to dead-letter
	if retries >= 10 {
		dlqName := queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", dlqName)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := msg.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retries"] = retries + 1

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
