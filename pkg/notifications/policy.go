package notifications

import (
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Rule is one row of the classification table.
type Rule struct {
	Priority Priority  `yaml:"priority"`
	Channels []Channel `yaml:"channels"`
}

// EventPolicy classifies one event type, with optional per-status overrides.
type EventPolicy struct {
	Rule     `yaml:",inline"`
	Statuses map[string]Rule `yaml:"statuses,omitempty"`
}

// Policy maps event types to priority and channel sets. A Policy value is
// immutable after construction; Classify on it is pure.
type Policy struct {
	events   map[EventType]EventPolicy
	fallback Rule
}

var (
	inApp      = []Channel{ChannelInApp}
	inAppEmail = []Channel{ChannelInApp, ChannelEmail}
)

// DefaultPolicy returns the built-in classification table. Email is reserved
// for events worth a transactional message.
func DefaultPolicy() *Policy {
	high := Rule{Priority: PriorityHigh, Channels: inAppEmail}
	return &Policy{
		fallback: Rule{Priority: PriorityLow, Channels: inApp},
		events: map[EventType]EventPolicy{
			EventPaymentFailed: {Rule: Rule{Priority: PriorityCritical, Channels: inAppEmail}},
			EventOrderUpdate: {
				Rule: Rule{Priority: PriorityMedium, Channels: inApp},
				Statuses: map[string]Rule{
					StatusConfirmed:      high,
					StatusOutForDelivery: high,
					StatusDelivered:      high,
					StatusCancelled:      high,
				},
			},
			EventReferralOrderUpdate: {Rule: Rule{Priority: PriorityMedium, Channels: inApp}},
			EventOrderCreated:        {Rule: Rule{Priority: PriorityMedium, Channels: inApp}},
			EventPaymentVerified:     {Rule: high},
			EventDeliveryAssigned:    {Rule: high},
			EventDeliveryCompleted:   {Rule: Rule{Priority: PriorityMedium, Channels: inApp}},
			EventDeliveryUpdate:      {Rule: Rule{Priority: PriorityMedium, Channels: inApp}},
			EventChallengeMilestone:  {Rule: Rule{Priority: PriorityMedium, Channels: inAppEmail}},
			EventZoneAssigned:        {Rule: Rule{Priority: PriorityMedium, Channels: inApp}},
			EventSystemAnnouncement:  {Rule: Rule{Priority: PriorityMedium, Channels: inApp}},
			EventAdminAlert: {
				Rule: Rule{Priority: PriorityHigh, Channels: inApp},
				Statuses: map[string]Rule{
					AlertPaymentFailed: {Priority: PriorityCritical, Channels: inApp},
				},
			},
		},
	}
}

type policyDocument struct {
	Events map[EventType]EventPolicy `yaml:"events"`
}

// LoadPolicy overlays a YAML document on top of DefaultPolicy:
//
//	events:
//	  order_update:
//	    priority: medium
//	    channels: [in_app]
//	    statuses:
//	      confirmed: {priority: high, channels: [in_app, email]}
//
// An event entry replaces the default entry for that event. In-app is added
// to every channel set that lacks it.
func LoadPolicy(data []byte) (*Policy, error) {
	var doc policyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrInvalidPolicy, err)
	}

	p := DefaultPolicy()
	for ev, ep := range doc.Events {
		if ev == "" {
			return nil, fmt.Errorf("%w: empty event type", ErrInvalidPolicy)
		}
		rule, err := normalizeRule(ep.Rule)
		if err != nil {
			return nil, fmt.Errorf("%w: event %s: %w", ErrInvalidPolicy, ev, err)
		}
		out := EventPolicy{Rule: rule}
		if len(ep.Statuses) > 0 {
			out.Statuses = make(map[string]Rule, len(ep.Statuses))
			for st, r := range ep.Statuses {
				nr, err := normalizeRule(r)
				if err != nil {
					return nil, fmt.Errorf("%w: event %s status %s: %w", ErrInvalidPolicy, ev, st, err)
				}
				out.Statuses[st] = nr
			}
		}
		p.events[ev] = out
	}
	return p, nil
}

func normalizeRule(r Rule) (Rule, error) {
	if !r.Priority.Valid() {
		return Rule{}, fmt.Errorf("unknown priority %q", r.Priority)
	}
	chs := []Channel{ChannelInApp}
	for _, ch := range r.Channels {
		if !ch.Valid() {
			return Rule{}, fmt.Errorf("unknown channel %q", ch)
		}
		if !slices.Contains(chs, ch) {
			chs = append(chs, ch)
		}
	}
	return Rule{Priority: r.Priority, Channels: chs}, nil
}

// Classify returns the priority and channel set for an event. The returned
// slice is a fresh copy.
func (p *Policy) Classify(t EventType, status string) (Priority, []Channel) {
	rule := p.fallback
	if ep, ok := p.events[t]; ok {
		rule = ep.Rule
		if r, ok := ep.Statuses[status]; ok && status != "" {
			rule = r
		}
	}
	return rule.Priority, slices.Clone(rule.Channels)
}
