package notifications

import (
	"context"
	"log/slog"

	"github.com/harvestlane/notifykit/pkg/logger"
)

// Preferences is a recipient's opt-out record. Nil fields were never set and
// do not suppress anything.
type Preferences struct {
	PushNotifications   *bool `json:"push_notifications,omitempty"`
	EmailNotifications  *bool `json:"email_notifications,omitempty"`
	OrderUpdates        *bool `json:"order_updates,omitempty"`
	PaymentUpdates      *bool `json:"payment_updates,omitempty"`
	DeliveryUpdates     *bool `json:"delivery_updates,omitempty"`
	ChallengeMilestones *bool `json:"challenge_milestones,omitempty"`
}

// Merge returns p with every field set in patch applied on top.
func (p Preferences) Merge(patch Preferences) Preferences {
	set := func(dst **bool, src *bool) {
		if src != nil {
			v := *src
			*dst = &v
		}
	}
	set(&p.PushNotifications, patch.PushNotifications)
	set(&p.EmailNotifications, patch.EmailNotifications)
	set(&p.OrderUpdates, patch.OrderUpdates)
	set(&p.PaymentUpdates, patch.PaymentUpdates)
	set(&p.DeliveryUpdates, patch.DeliveryUpdates)
	set(&p.ChallengeMilestones, patch.ChallengeMilestones)
	return p
}

// channelEnabled reports the global toggle for ch. SMS has no toggle.
func (p *Preferences) channelEnabled(ch Channel) bool {
	switch ch {
	case ChannelInApp:
		return !isFalse(p.PushNotifications)
	case ChannelEmail:
		return !isFalse(p.EmailNotifications)
	}
	return true
}

// categoryEnabled consults the fixed event-to-field table. Unmapped events
// are never suppressed by category.
func (p *Preferences) categoryEnabled(t EventType) bool {
	switch t {
	case EventOrderUpdate, EventReferralOrderUpdate:
		return !isFalse(p.OrderUpdates)
	case EventPaymentVerified:
		return !isFalse(p.PaymentUpdates)
	case EventChallengeMilestone:
		return !isFalse(p.ChallengeMilestones)
	case EventDeliveryUpdate:
		return !isFalse(p.DeliveryUpdates)
	}
	return true
}

func isFalse(b *bool) bool { return b != nil && !*b }

// Bool is a helper for building preference patches.
func Bool(v bool) *bool { return &v }

// PreferenceStore is the external profile store holding preference records.
type PreferenceStore interface {
	// GetPreferences returns (nil, nil) when the recipient has no record.
	GetPreferences(ctx context.Context, id string, role Role) (*Preferences, error)
	UpdatePreferences(ctx context.Context, id string, role Role, patch Preferences) (*Preferences, error)
}

// Gate decides whether a recipient should receive a notification on a channel.
type Gate struct {
	store  PreferenceStore
	logger *slog.Logger
}

type GateOption func(*Gate)

func WithGateLogger(l *slog.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGate creates a gate. A nil store means no recipient has preferences.
func NewGate(store PreferenceStore, opts ...GateOption) *Gate {
	g := &Gate{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ShouldSend reports whether r should receive ev on ch.
func (g *Gate) ShouldSend(ctx context.Context, r Recipient, ev Event, ch Channel) bool {
	if ev.IsCritical() || !r.Gated() {
		return true
	}
	return g.allowed(g.load(ctx, r), ev, ch)
}

// Decide evaluates every requested channel with a single preference lookup.
// inApp reports whether the recipient gets a record at all; allowed lists the
// channels that passed, in request order.
func (g *Gate) Decide(ctx context.Context, r Recipient, ev Event, channels []Channel) (inApp bool, allowed []Channel) {
	if ev.IsCritical() || !r.Gated() {
		return true, append([]Channel(nil), channels...)
	}
	prefs := g.load(ctx, r)
	if !g.allowed(prefs, ev, ChannelInApp) {
		return false, nil
	}
	for _, ch := range channels {
		if g.allowed(prefs, ev, ch) {
			allowed = append(allowed, ch)
		}
	}
	return true, allowed
}

func (g *Gate) allowed(prefs *Preferences, ev Event, ch Channel) bool {
	if prefs == nil {
		return true
	}
	return prefs.channelEnabled(ch) && prefs.categoryEnabled(ev.Type)
}

// load never suppresses on failure: a broken profile store degrades to
// "no record".
func (g *Gate) load(ctx context.Context, r Recipient) *Preferences {
	if g.store == nil {
		return nil
	}
	prefs, err := g.store.GetPreferences(ctx, r.ID, r.Role)
	if err != nil {
		g.logger.WarnContext(ctx, "failed to load preferences, sending anyway",
			logger.RecipientID(r.ID),
			logger.Role(string(r.Role)),
			logger.Error(err),
		)
		return nil
	}
	return prefs
}

// GetPreferences is a pass-through read of the profile store.
func (g *Gate) GetPreferences(ctx context.Context, id string, role Role) (*Preferences, error) {
	if g.store == nil {
		return nil, nil
	}
	return g.store.GetPreferences(ctx, id, role)
}

// UpdatePreferences is a pass-through write to the profile store.
func (g *Gate) UpdatePreferences(ctx context.Context, id string, role Role, patch Preferences) (*Preferences, error) {
	if g.store == nil {
		return nil, ErrPreferencesUnavailable
	}
	return g.store.UpdatePreferences(ctx, id, role, patch)
}
