package pipeline

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/progress"
)

const monitorPollInterval = time.Second

// monitorOutput consumes indexer stdout line by line, classifying each
// line into a pipeline step and persisting forward progress. It returns
// when the stream closes or the context is cancelled. Progress never
// moves backwards: a line classified below the current percentage is
// ignored.
func (o *Orchestrator) monitorOutput(ctx context.Context, r io.Reader, record *progress.IndexingProgress) {
	lines := make(chan string, 64)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(monitorPollInterval)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			step, pct, matched := o.classifier.Classify(line)
			if !matched || pct <= record.ProgressPercentage {
				continue
			}
			if err := o.tracker.UpdateStep(record, step, pct); err != nil {
				logger.Warn("[Pipeline] Failed to persist progress", "document_id", record.DocumentID, "step", step, "err", err)
			}
		case <-ticker.C:
			// idle poll so cancellation is noticed between log lines
			if ctx.Err() != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
