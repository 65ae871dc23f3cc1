package notifications

import (
	"slices"
	"time"
)

// Role identifies which identity namespace a recipient belongs to.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleVolunteer Role = "volunteer"
	RoleCustomer  Role = "customer"
	RolePublic    Role = "public"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleVolunteer, RoleCustomer, RolePublic:
		return true
	}
	return false
}

// Category is the coarse grouping used for filtering and preference suppression.
type Category string

const (
	CategoryOrder       Category = "order"
	CategoryDelivery    Category = "delivery"
	CategoryAchievement Category = "achievement"
	CategoryZone        Category = "zone"
	CategorySystem      Category = "system"
	CategoryAdmin       Category = "admin"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryOrder, CategoryDelivery, CategoryAchievement, CategoryZone, CategorySystem, CategoryAdmin:
		return true
	}
	return false
}

// Priority of a notification. Set once at creation.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Channel is a delivery medium independent of the persisted record.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	// ChannelSMS has no sender yet; it is dropped at dispatch time.
	ChannelSMS Channel = "sms"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

// DeliveryStatus tracks external channel attempts for a record.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Notification is the durable record of one message to one recipient,
// or to the public bucket when RecipientID is empty.
type Notification struct {
	ID             string         `json:"id"`
	RecipientID    string         `json:"recipient_id,omitempty"`
	RecipientRole  Role           `json:"recipient_role"`
	EventType      EventType      `json:"event_type"`
	Category       Category       `json:"category"`
	Priority       Priority       `json:"priority"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	ActionURL      string         `json:"action_url,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Read           bool           `json:"is_read"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	Channels       []Channel      `json:"channels"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Recipient returns the identity the record was addressed to.
func (n Notification) Recipient() Recipient {
	return Recipient{ID: n.RecipientID, Role: n.RecipientRole}
}

// HasExternalChannel reports whether anything beyond in-app was attempted.
func (n Notification) HasExternalChannel() bool {
	return slices.ContainsFunc(n.Channels, func(c Channel) bool { return c != ChannelInApp })
}

// Validate enforces the record invariants: exactly one of "identity present"
// and "role is public" holds, and the enums carry known values.
func (n Notification) Validate() error {
	if (n.RecipientID == "") != (n.RecipientRole == RolePublic) {
		return ErrInvalidNotification
	}
	if !n.RecipientRole.Valid() || !n.Category.Valid() || !n.Priority.Valid() {
		return ErrInvalidNotification
	}
	if n.Title == "" || !slices.Contains(n.Channels, ChannelInApp) {
		return ErrInvalidNotification
	}
	return nil
}
