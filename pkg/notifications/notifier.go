package notifications

import (
	"context"
	"log/slog"

	"github.com/harvestlane/notifykit/pkg/logger"
)

// Notifier runs the full pipeline for an event: resolve recipients, classify,
// gate and dispatch. It also exposes the recipient-facing reading surface.
type Notifier struct {
	resolver   *Resolver
	dispatcher *Dispatcher
	policy     *Policy
	logger     *slog.Logger
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithPolicy replaces the default classification policy.
func WithPolicy(p *Policy) NotifierOption {
	return func(n *Notifier) {
		if p != nil {
			n.policy = p
		}
	}
}

// WithNotifierLogger sets the logger for the Notifier.
func WithNotifierLogger(l *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewNotifier creates a new notifier.
func NewNotifier(resolver *Resolver, dispatcher *Dispatcher, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		resolver:   resolver,
		dispatcher: dispatcher,
		policy:     DefaultPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify resolves spec and dispatches msg to every recipient found.
// Zero recipients is a successful, empty result.
func (n *Notifier) Notify(ctx context.Context, spec TargetingSpec, msg Message) (DispatchResult, error) {
	recipients, err := n.resolver.Resolve(ctx, spec)
	if err != nil {
		n.logger.WarnContext(ctx, "failed to resolve recipients",
			logger.EventType(string(msg.Event.Type)),
			slog.String("scope", string(spec.Scope)),
			logger.Error(err))
		return DispatchResult{}, err
	}
	return n.NotifyRecipients(ctx, recipients, msg)
}

// NotifyRecipients dispatches msg to already resolved recipients.
func (n *Notifier) NotifyRecipients(ctx context.Context, recipients []Recipient, msg Message) (DispatchResult, error) {
	return n.dispatcher.Dispatch(ctx, recipients, n.Classify(msg))
}

// Classify fills the message priority and channels from the policy when the
// caller left them unset.
func (n *Notifier) Classify(msg Message) Message {
	if msg.Priority != "" && msg.Channels != nil {
		return msg
	}
	p, chs := n.policy.Classify(msg.Event.Type, msg.Event.Status)
	if msg.Priority == "" {
		msg.Priority = p
	}
	if msg.Channels == nil {
		msg.Channels = chs
	}
	return msg
}

// Resolver returns the recipient resolver.
func (n *Notifier) Resolver() *Resolver { return n.resolver }

func (n *Notifier) Get(ctx context.Context, id string) (*Notification, error) {
	return n.dispatcher.Storage().Get(ctx, id)
}

func (n *Notifier) List(ctx context.Context, r Recipient, opts ListOptions) ([]Notification, error) {
	return n.dispatcher.Storage().List(ctx, r, opts)
}

func (n *Notifier) CountUnread(ctx context.Context, r Recipient) (int, error) {
	return n.dispatcher.Storage().CountUnread(ctx, r)
}

func (n *Notifier) MarkRead(ctx context.Context, r Recipient, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return n.dispatcher.Storage().MarkRead(ctx, r, ids...)
}

// MarkAllRead marks all notifications as read for a recipient.
func (n *Notifier) MarkAllRead(ctx context.Context, r Recipient) error {
	return n.dispatcher.Storage().MarkAllRead(ctx, r)
}

func (n *Notifier) GetPreferences(ctx context.Context, r Recipient) (*Preferences, error) {
	return n.dispatcher.Gate().GetPreferences(ctx, r.ID, r.Role)
}

func (n *Notifier) UpdatePreferences(ctx context.Context, r Recipient, patch Preferences) (*Preferences, error) {
	return n.dispatcher.Gate().UpdatePreferences(ctx, r.ID, r.Role, patch)
}
