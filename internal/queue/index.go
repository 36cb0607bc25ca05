package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/common"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/leaselock"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/pipeline"
)

// IndexDocumentMsg is the payload published to the index queue when a
// document should be indexed.
type IndexDocumentMsg struct {
	DocumentID string `json:"document_id"`
}

// ProcessIndexMessage runs the indexing pipeline for one queued
// document. The lease lock guarantees that two workers never index the
// same document at once; a busy lock requeues the message via the
// retry queue.
func ProcessIndexMessage(
	ctx context.Context,
	orchestrator *pipeline.Orchestrator,
	locks *leaselock.Client,
	msg string,
) error {
	data := new(IndexDocumentMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("failed to decode index message: %w", err)
	}
	if data.DocumentID == "" {
		return errors.New("index message without document id")
	}

	return locks.WithLease(ctx, "index:"+data.DocumentID, leaselock.Options{
		TTL:        10 * time.Minute,
		RenewEvery: 30 * time.Second,
	}, func(ctx context.Context) error {
		_, task, err := orchestrator.StartIndexing(ctx, data.DocumentID)
		if err != nil {
			// A document that is already indexing or indexed is not a
			// delivery failure; acking avoids retry loops.
			if errors.Is(err, common.ErrInvalidState) {
				logger.Warn("[Queue] Skipping index message", "document_id", data.DocumentID, "err", err)
				return nil
			}
			return err
		}

		logger.Info("[Queue] Indexing started", "document_id", data.DocumentID)
		if err := task.Wait(ctx); err != nil {
			return fmt.Errorf("indexing document %s: %w", data.DocumentID, err)
		}
		logger.Info("[Queue] Indexing finished", "document_id", data.DocumentID)
		return nil
	})
}
