package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fasticket/backend/internal/emaillogs"
	"github.com/fasticket/backend/internal/mailer"
	"github.com/fasticket/backend/internal/metrics"
	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/queue"
)

// dequeueTimeout bounds each blocking pop so shutdown is noticed promptly.
const dequeueTimeout = 5 * time.Second

// Store is the email log persistence the worker needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error)
	MarkSent(ctx context.Context, id uuid.UUID, subject string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	Recipient(ctx context.Context, bookingID uuid.UUID) (*emaillogs.Recipient, error)
}

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, to string, msg *mailer.Message) error
}

// JobQueue is the queue the worker consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration, queues ...string) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EmailProcessor processes email jobs: load the log row, render, send over SMTP, record the outcome.
type EmailProcessor struct {
	store   Store
	sender  Sender
	queue   JobQueue
	baseURL string
	backoff time.Duration
	logger  *zap.Logger
}

// NewEmailProcessor creates an email job processor. baseURL prefixes event links in emails.
func NewEmailProcessor(store Store, sender Sender, q JobQueue, baseURL string, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{store: store, sender: sender, queue: q, baseURL: baseURL, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return mailer.PermanentErrorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return mailer.PermanentErrorf("unmarshal payload: %v", err)
	}

	el, err := p.store.GetByID(ctx, payload.EmailLogID)
	if err != nil {
		if errors.Is(err, emaillogs.ErrNotFound) {
			return mailer.PermanentErrorf("email log %s not found", payload.EmailLogID)
		}
		return fmt.Errorf("load email log: %w", err)
	}
	if el.Status == models.EmailLogStatusSent {
		p.logger.Info("email already sent", zap.String("email_log_id", el.ID.String()))
		return nil
	}

	rc, err := p.store.Recipient(ctx, payload.BookingID)
	if err != nil {
		if errors.Is(err, emaillogs.ErrNotFound) {
			return p.fail(ctx, el, mailer.PermanentErrorf("booking %s not found", payload.BookingID))
		}
		return fmt.Errorf("load recipient: %w", err)
	}

	msg, err := mailer.Render(el.EmailType, mailer.BookingDetails{
		AttendeeName:    rc.FullName,
		EventTitle:      rc.EventTitle,
		EventLocation:   rc.EventLocation,
		EventStartDate:  rc.EventStartDate,
		BookingCode:     rc.BookingCode,
		Quantity:        rc.Quantity,
		TotalPriceCents: rc.TotalPriceCents,
		Currency:        rc.Currency,
		Link:            p.eventLink(rc),
	})
	if err != nil {
		return p.fail(ctx, el, mailer.PermanentErrorf("render: %v", err))
	}

	if err := p.sender.Send(ctx, el.RecipientEmail, msg); err != nil {
		return p.fail(ctx, el, err)
	}
	if err := p.store.MarkSent(ctx, el.ID, msg.Subject); err != nil {
		// the mail went out; a retry would send a duplicate
		p.logger.Error("mark email sent", zap.String("email_log_id", el.ID.String()), zap.Error(err))
	}
	metrics.RecordEmail(el.EmailType, true)
	p.logger.Info("email sent",
		zap.String("email_log_id", el.ID.String()),
		zap.String("type", el.EmailType),
		zap.String("booking_id", payload.BookingID.String()),
	)
	return nil
}

func (p *EmailProcessor) fail(ctx context.Context, el *models.EmailLog, cause error) error {
	metrics.RecordEmail(el.EmailType, false)
	if err := p.store.MarkFailed(ctx, el.ID, cause.Error()); err != nil {
		p.logger.Error("mark email failed", zap.String("email_log_id", el.ID.String()), zap.Error(err))
	}
	return cause
}

func (p *EmailProcessor) eventLink(rc *emaillogs.Recipient) string {
	if p.baseURL == "" {
		return ""
	}
	return p.baseURL + "/events/" + rc.EventID.String()
}

// Run starts the worker loop: dequeue, process, retry transient failures.
func (p *EmailProcessor) Run(ctx context.Context) {
	p.logger.Info("email worker started")
	for {
		if ctx.Err() != nil {
			p.logger.Info("email worker stopping")
			return
		}

		job, err := p.queue.Dequeue(ctx, dequeueTimeout, queue.QueueEmails)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			if mailer.IsPermanent(err) {
				p.logger.Error("job failed permanently", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			p.logger.Warn("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(context.WithoutCancel(ctx), job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
