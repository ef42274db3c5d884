package emaillogs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/queue"
)

// NotifierStore is the persistence the notifier needs.
type NotifierStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	Recipient(ctx context.Context, bookingID uuid.UUID) (*Recipient, error)
}

// Enqueuer hands email jobs to the worker.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Notifier records a pending email_logs row per booking email and queues it for the worker.
type Notifier struct {
	store  NotifierStore
	queue  Enqueuer
	logger *zap.Logger
}

// NewNotifier creates a booking email notifier.
func NewNotifier(store NotifierStore, q Enqueuer, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{store: store, queue: q, logger: logger}
}

// BookingConfirmed queues the confirmation email for a booking.
func (n *Notifier) BookingConfirmed(ctx context.Context, bookingID uuid.UUID) error {
	_, err := n.notifyBooking(ctx, bookingID, models.EmailTypeBookingConfirmation)
	return err
}

// BookingCancelled queues a cancellation email; emailType tells a user cancellation from an event cancellation.
func (n *Notifier) BookingCancelled(ctx context.Context, bookingID uuid.UUID, emailType string) error {
	_, err := n.notifyBooking(ctx, bookingID, emailType)
	return err
}

func (n *Notifier) notifyBooking(ctx context.Context, bookingID uuid.UUID, emailType string) (*models.EmailLog, error) {
	rc, err := n.store.Recipient(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return n.Notify(ctx, rc, emailType)
}

// Notify creates the log row for rc and enqueues it. A row whose job cannot be queued is marked failed.
func (n *Notifier) Notify(ctx context.Context, rc *Recipient, emailType string) (*models.EmailLog, error) {
	if rc.Email == "" {
		return nil, ErrNoRecipient
	}
	eventID, bookingID := rc.EventID, rc.BookingID
	el := &models.EmailLog{
		EventID:        &eventID,
		BookingID:      &bookingID,
		EmailType:      emailType,
		RecipientEmail: rc.Email,
		Status:         models.EmailLogStatusPending,
	}
	if err := n.store.Create(ctx, el); err != nil {
		return nil, err
	}
	if err := n.queue.EnqueueEmail(ctx, queue.EmailPayload{EmailLogID: el.ID, BookingID: bookingID, EmailType: emailType}); err != nil {
		if mErr := n.store.MarkFailed(ctx, el.ID, "enqueue: "+err.Error()); mErr != nil {
			n.logger.Warn("mark email failed", zap.String("email_log_id", el.ID.String()), zap.Error(mErr))
		}
		el.Status = models.EmailLogStatusFailed
		return el, fmt.Errorf("enqueue email: %w", err)
	}
	n.logger.Debug("email queued",
		zap.String("email_log_id", el.ID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.String("type", emailType),
	)
	return el, nil
}
