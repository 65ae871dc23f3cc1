package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/harvestlane/notifykit/pkg/logger"
)

// Message is the content of one event fan-out, shared by all recipients.
type Message struct {
	Event     Event
	Title     string
	Body      string
	Category  Category  // defaults to CategoryOf(Event.Type)
	Priority  Priority  // filled by the classifier when empty
	Channels  []Channel // filled by the classifier when nil; in-app is always added
	ActionURL string
	Metadata  map[string]any
}

// Validate checks that the message can produce valid records.
func (m Message) Validate() error {
	if m.Event.Type == "" {
		return fmt.Errorf("%w: event type is required", ErrInvalidMessage)
	}
	if m.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidMessage)
	}
	if !m.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidMessage, m.Priority)
	}
	if m.Category != "" && !m.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidMessage, m.Category)
	}
	for _, ch := range m.Channels {
		if !ch.Valid() {
			return fmt.Errorf("%w: unknown channel %q", ErrInvalidMessage, ch)
		}
	}
	return nil
}

// DispatchResult summarises one dispatch call.
type DispatchResult struct {
	// Created is the number of persisted records.
	Created int `json:"created"`
	// Suppressed counts recipients the preference gate declined. It is not a failure.
	Suppressed int `json:"suppressed"`
	// Failed counts channel tasks that could not be handed to the send pool.
	// Failures of queued sends happen later and are recorded on the record only.
	Failed int `json:"failed"`
	// Duplicate is set by callers that skipped an already-seen event.
	Duplicate bool `json:"duplicate,omitempty"`

	Notifications []Notification `json:"-"`
}

// configurable is implemented by senders that may be present but unconfigured.
type configurable interface {
	Configured() bool
}

// Dispatcher persists notification records in one batch and hands external
// channel sends to the send pool.
type Dispatcher struct {
	store   Storage
	gate    *Gate
	senders map[Channel]ChannelSender
	pool    Submitter
	feed    Publisher
	logger  *slog.Logger
	now     func() time.Time
}

type DispatcherOption func(*Dispatcher)

// WithChannelSender registers the sender for its channel. Unconfigured
// senders are ignored so notifications degrade to in-app only.
func WithChannelSender(s ChannelSender) DispatcherOption {
	return func(d *Dispatcher) {
		if s == nil {
			return
		}
		if c, ok := s.(configurable); ok && !c.Configured() {
			return
		}
		d.senders[s.Channel()] = s
	}
}

// WithSendPool sets where channel tasks are submitted. Without a pool,
// external channels are not attempted.
func WithSendPool(p Submitter) DispatcherOption {
	return func(d *Dispatcher) { d.pool = p }
}

// WithFeed publishes persisted records to live subscribers.
func WithFeed(p Publisher) DispatcherOption {
	return func(d *Dispatcher) { d.feed = p }
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher. A nil gate lets every recipient through.
func NewDispatcher(store Storage, gate *Gate, opts ...DispatcherOption) *Dispatcher {
	if gate == nil {
		gate = NewGate(nil)
	}
	d := &Dispatcher{
		store:   store,
		gate:    gate,
		senders: make(map[Channel]ChannelSender),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Storage returns the underlying notification storage.
func (d *Dispatcher) Storage() Storage { return d.store }

// Gate returns the preference gate.
func (d *Dispatcher) Gate() *Gate { return d.gate }

type planned struct {
	record    Notification
	recipient Recipient
	external  []Channel
}

// Dispatch creates one record per recipient that passes the gate and queues
// the external channel sends. Only a store failure is returned as an error;
// channel problems are logged and counted.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []Recipient, msg Message) (DispatchResult, error) {
	var res DispatchResult

	if msg.Category == "" {
		msg.Category = CategoryOf(msg.Event.Type)
	}
	if err := msg.Validate(); err != nil {
		return res, err
	}

	channels := normalizeChannels(msg.Channels)
	plan := make([]planned, 0, len(recipients))
	now := d.now().UTC()

	for _, r := range Dedupe(recipients) {
		if !r.Valid() {
			d.logger.WarnContext(ctx, "skipping invalid recipient",
				logger.RecipientID(r.ID), logger.Role(string(r.Role)))
			continue
		}

		var allowed []Channel
		switch {
		case r.IsPublic():
			allowed = []Channel{ChannelInApp}
		case !r.Gated():
			allowed = channels
		default:
			var ok bool
			ok, allowed = d.gate.Decide(ctx, r, msg.Event, channels)
			if !ok {
				res.Suppressed++
				continue
			}
		}

		external := d.deliverable(r, allowed)
		plan = append(plan, planned{
			recipient: r,
			external:  external,
			record: Notification{
				ID:             uuid.New().String(),
				RecipientID:    r.ID,
				RecipientRole:  r.Role,
				EventType:      msg.Event.Type,
				Category:       msg.Category,
				Priority:       msg.Priority,
				Title:          msg.Title,
				Body:           msg.Body,
				ActionURL:      msg.ActionURL,
				Metadata:       maps.Clone(msg.Metadata),
				DeliveryStatus: DeliveryPending,
				Channels:       append([]Channel{ChannelInApp}, external...),
				CreatedAt:      now,
			},
		})
	}

	if len(plan) == 0 {
		d.logger.DebugContext(ctx, "nothing to dispatch",
			logger.EventType(string(msg.Event.Type)),
			logger.Count("suppressed", res.Suppressed))
		return res, nil
	}

	records := make([]Notification, len(plan))
	for i := range plan {
		records[i] = plan[i].record
	}

	// Store first: in-app persistence is the only part that can fail the dispatch.
	stored, err := d.store.InsertMany(ctx, records)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to store notifications",
			logger.EventType(string(msg.Event.Type)),
			logger.Count("records", len(records)),
			logger.Error(err))
		return res, errors.Join(ErrStoreInsert, err)
	}
	res.Created = len(stored)
	res.Notifications = stored

	if d.feed != nil {
		d.feed.Publish(ctx, stored...)
	}

	inAppOnly := make([]string, 0, len(plan))
	for _, p := range plan {
		if len(p.external) == 0 {
			inAppOnly = append(inAppOnly, p.record.ID)
		}
	}
	if len(inAppOnly) > 0 {
		if err := d.store.UpdateDeliveryStatus(ctx, DeliverySent, inAppOnly...); err != nil {
			d.logger.WarnContext(ctx, "failed to mark in-app notifications sent",
				logger.Count("records", len(inAppOnly)),
				logger.Error(err))
		}
	}

	for _, p := range plan {
		for _, ch := range p.external {
			task := SendTask{
				Delivery: Delivery{Notification: p.record, Recipient: p.recipient},
				Sender:   d.senders[ch],
			}
			if err := d.pool.Submit(task); err != nil {
				res.Failed++
				d.logger.WarnContext(ctx, "channel send not queued",
					logger.NotificationID(p.record.ID),
					logger.Channel(string(ch)),
					logger.Error(err))
				if err := d.store.UpdateDeliveryStatus(ctx, DeliveryFailed, p.record.ID); err != nil {
					d.logger.ErrorContext(ctx, "failed to record delivery status",
						logger.NotificationID(p.record.ID),
						logger.Error(err))
				}
			}
		}
	}

	d.logger.InfoContext(ctx, "notifications dispatched",
		logger.EventType(string(msg.Event.Type)),
		logger.Count("created", res.Created),
		logger.Count("suppressed", res.Suppressed),
		logger.Count("failed", res.Failed))

	return res, nil
}

// deliverable keeps the external channels that can actually be attempted for r.
func (d *Dispatcher) deliverable(r Recipient, allowed []Channel) []Channel {
	if d.pool == nil || r.IsPublic() {
		return nil
	}
	var out []Channel
	for _, ch := range allowed {
		if ch == ChannelInApp {
			continue
		}
		if _, ok := d.senders[ch]; !ok {
			continue
		}
		if ch == ChannelEmail && r.Email == "" {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// normalizeChannels puts in-app first and drops repeats.
func normalizeChannels(chs []Channel) []Channel {
	out := []Channel{ChannelInApp}
	for _, ch := range chs {
		if !slices.Contains(out, ch) {
			out = append(out, ch)
		}
	}
	return out
}
