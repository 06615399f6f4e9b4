package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/messaging"
)

// Mail templates understood by the delivery consumer.
const (
	TemplatePasswordReset        = "password_reset"
	TemplatePasswordResetConfirm = "password_reset_confirmation"
)

const (
	defaultQueueSize = 256
	deliveryTimeout  = 10 * time.Second
)

// ErrQueueFull is returned when a notification cannot be queued without blocking.
var ErrQueueFull = errors.New("notification queue full")

// MailMessage is the payload written to the delivery topic.
type MailMessage struct {
	EventID   string    `json:"event_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Template  string    `json:"template"`
	ResetLink string    `json:"reset_link,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// NotificationService turns credential events into outbound mail. It implements
// Notifier by queueing events; Run dispatches them to its handlers, so the
// caller never waits on the broker.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  messaging.Publisher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	queue      chan events.Event
	now        func() time.Time
}

// NewNotificationService creates the service. publisher may be nil, in which case
// notifications are only logged.
func NewNotificationService(dispatcher events.Dispatcher, publisher messaging.Publisher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
		queue:      make(chan events.Event, size),
		now:        time.Now,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handleResetRequested)
	n.dispatcher.Subscribe(events.EventPasswordResetCompleted, n.handleResetCompleted)
}

// SendResetToken announces a reset link for email.
func (n *NotificationService) SendResetToken(_ context.Context, email, token string) error {
	payload := events.PasswordResetRequestedPayload{
		ResetLink: n.resetLink(token),
		ExpiresAt: n.now().Add(auth.ResetTokenTTL).UTC(),
	}
	return n.enqueue(events.NewEvent(events.EventPasswordResetRequested, email, payload))
}

// SendResetConfirmation announces that email's password was reset.
func (n *NotificationService) SendResetConfirmation(_ context.Context, email string) error {
	return n.enqueue(events.NewEvent(events.EventPasswordResetCompleted, email, nil))
}

// Run dispatches queued events until ctx is cancelled, then drains what is left.
func (n *NotificationService) Run(ctx context.Context) {
	for {
		select {
		case event := <-n.queue:
			n.dispatch(event)
		case <-ctx.Done():
			for {
				select {
				case event := <-n.queue:
					n.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (n *NotificationService) enqueue(event events.Event) error {
	select {
	case n.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// dispatch delivers one event under its own deadline; the originating request is gone by now.
func (n *NotificationService) dispatch(event events.Event) {
	if n.dispatcher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := n.dispatcher.Publish(ctx, event); err != nil {
		n.logger.Warn("notification delivery failed",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("to", event.Recipient),
			zap.Error(err))
	}
}

func (n *NotificationService) resetLink(token string) string {
	base := strings.TrimSpace(n.cfg.ResetURL)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

func (n *NotificationService) handleResetRequested(ctx context.Context, event events.Event) error {
	msg := MailMessage{EventID: event.ID, From: n.cfg.EmailFrom, To: event.Recipient, Template: TemplatePasswordReset}
	if p, ok := event.Payload.(events.PasswordResetRequestedPayload); ok {
		msg.ResetLink = p.ResetLink
		msg.ExpiresAt = p.ExpiresAt
	}
	return n.deliver(ctx, msg)
}

func (n *NotificationService) handleResetCompleted(ctx context.Context, event events.Event) error {
	return n.deliver(ctx, MailMessage{EventID: event.ID, From: n.cfg.EmailFrom, To: event.Recipient, Template: TemplatePasswordResetConfirm})
}

func (n *NotificationService) deliver(ctx context.Context, msg MailMessage) error {
	n.logger.Info("notification queued",
		zap.String("event_id", msg.EventID),
		zap.String("template", msg.Template),
		zap.String("to", msg.To))
	if n.publisher == nil {
		return nil
	}
	return n.publisher.Publish(ctx, msg.To, msg)
}
