package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/meetup-qa/backend/internal/models"
	"github.com/meetup-qa/backend/internal/reports"
	"github.com/meetup-qa/backend/pkg/queue"
	"github.com/meetup-qa/backend/pkg/storage"
)

// Processor handles one kind of job.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
}

type reportSource interface {
	Load(ctx context.Context, sessionID int64) (*reports.Data, error)
	SetKey(ctx context.Context, sessionID int64, key string) (*string, error)
}

type reportUploader interface {
	UploadReport(ctx context.Context, key string, body io.Reader) error
	DeleteReport(ctx context.Context, key string) error
}

// ReportProcessor builds a session's CSV report, uploads it and records the key.
type ReportProcessor struct {
	source   reportSource
	uploader reportUploader
	logger   *zap.Logger
}

// NewReportProcessor creates a report processor.
func NewReportProcessor(source reportSource, uploader reportUploader, logger *zap.Logger) *ReportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportProcessor{source: source, uploader: uploader, logger: logger}
}

// Process executes one report job. A session that ended before the job ran is skipped.
func (p *ReportProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.ReportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	data, err := p.source.Load(ctx, payload.SessionID)
	if errors.Is(err, models.ErrNotFound) {
		p.logger.Info("report skipped, session gone", zap.Int64("session_id", payload.SessionID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load report data: %w", err)
	}

	var buf bytes.Buffer
	if err := reports.WriteCSV(&buf, data); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	key := storage.ReportKey(data.SessionCode)
	if err := p.uploader.UploadReport(ctx, key, &buf); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	previous, err := p.source.SetKey(ctx, payload.SessionID, key)
	if errors.Is(err, models.ErrNotFound) {
		p.logger.Info("session ended during report upload", zap.Int64("session_id", payload.SessionID), zap.String("key", key))
		p.remove(ctx, key)
		return nil
	}
	if err != nil {
		p.remove(ctx, key)
		return fmt.Errorf("update db: %w", err)
	}
	if previous != nil && *previous != key {
		p.remove(ctx, *previous)
	}

	p.logger.Info("report completed",
		zap.Int64("session_id", payload.SessionID),
		zap.String("key", key),
		zap.Int("questions", len(data.Questions)),
		zap.String("requested_by", payload.RequestedBy))
	return nil
}

// remove deletes an object the session no longer points at. Failures are only logged.
func (p *ReportProcessor) remove(ctx context.Context, key string) {
	if err := p.uploader.DeleteReport(ctx, key); err != nil {
		p.logger.Warn("delete stale report", zap.String("key", key), zap.Error(err))
	}
}

type emailSender interface {
	Send(ctx context.Context, p queue.EmailPayload) error
}

// EmailProcessor sends queued emails.
type EmailProcessor struct {
	sender emailSender
	logger *zap.Logger
}

// NewEmailProcessor creates an email processor.
func NewEmailProcessor(sender emailSender, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{sender: sender, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := p.sender.Send(ctx, payload); err != nil {
		return fmt.Errorf("send %s email: %w", payload.EmailType, err)
	}
	p.logger.Info("email sent", zap.String("email_type", payload.EmailType), zap.String("job_id", job.ID))
	return nil
}

type jobQueue interface {
	Dequeue(ctx context.Context, wait time.Duration, keys ...string) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Runner pulls jobs off the queue and dispatches them by type.
type Runner struct {
	queue      jobQueue
	processors map[queue.JobType]Processor
	wait       time.Duration
	backoff    time.Duration
	logger     *zap.Logger
}

// NewRunner creates a runner for the given processors.
func NewRunner(q jobQueue, processors map[queue.JobType]Processor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		queue:      q,
		processors: processors,
		wait:       5 * time.Second,
		backoff:    queue.RetryBackoff,
		logger:     logger,
	}
}

// Keys returns the queue keys the runner listens on.
func (r *Runner) Keys() []string {
	keys := make([]string, 0, len(r.processors))
	for t := range r.processors {
		if k, err := queue.KeyFor(t); err == nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Handle processes one job and requeues it on failure.
func (r *Runner) Handle(ctx context.Context, job *queue.Job) error {
	p, ok := r.processors[job.Type]
	if !ok {
		r.logger.Error("no processor for job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return fmt.Errorf("%w: %s", queue.ErrUnknownJobType, job.Type)
	}
	r.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)
	if err == nil {
		return nil
	}
	r.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	if reErr := r.queue.Retry(ctx, job); reErr != nil {
		r.logger.Error("retry enqueue failed", zap.Error(reErr))
	}
	return err
}

// Run starts the worker loop: dequeue, process, retry on error.
func (r *Runner) Run(ctx context.Context) {
	keys := r.Keys()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := r.queue.Dequeue(ctx, r.wait, keys...)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			r.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, r.backoff)
			continue
		}
		if job == nil {
			continue
		}
		if err := r.Handle(ctx, job); err != nil {
			sleep(ctx, r.backoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
