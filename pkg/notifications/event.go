package notifications

// EventType names the business event that produced a notification.
type EventType string

const (
	EventOrderCreated        EventType = "order_created"
	EventOrderUpdate         EventType = "order_update"
	EventReferralOrderUpdate EventType = "referral_order_update"
	EventPaymentFailed       EventType = "payment_failed"
	EventPaymentVerified     EventType = "payment_verified"
	EventDeliveryAssigned    EventType = "delivery_assigned"
	EventDeliveryCompleted   EventType = "delivery_completed"
	EventDeliveryUpdate      EventType = "delivery_update"
	EventChallengeMilestone  EventType = "challenge_milestone"
	EventZoneAssigned        EventType = "zone_assigned"
	EventSystemAnnouncement  EventType = "system_announcement"
	EventAdminAlert          EventType = "admin_alert"
)

// Order statuses that change how an order event is classified.
const (
	StatusPending        = "pending"
	StatusConfirmed      = "confirmed"
	StatusPreparing      = "preparing"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusCancelled      = "cancelled"

	// AlertPaymentFailed is the admin_alert status raised on payment failures.
	AlertPaymentFailed = "payment_failed"
	// AlertNewOrder and AlertNewDeliveryRequest label routine admin alerts.
	AlertNewOrder           = "new_order"
	AlertNewDeliveryRequest = "new_delivery_request"
)

// Event is a typed event plus an optional status value (order status,
// delivery request status, admin alert kind).
type Event struct {
	Type   EventType `json:"type"`
	Status string    `json:"status,omitempty"`
}

// IsCritical reports whether the event bypasses preference suppression:
// payment failures and order cancellations, including the referrer's copy.
func (e Event) IsCritical() bool {
	switch e.Type {
	case EventPaymentFailed:
		return true
	case EventOrderUpdate, EventReferralOrderUpdate:
		return e.Status == StatusCancelled
	}
	return false
}

// CategoryOf maps an event type to its notification category.
func CategoryOf(t EventType) Category {
	switch t {
	case EventOrderCreated, EventOrderUpdate, EventReferralOrderUpdate, EventPaymentFailed, EventPaymentVerified:
		return CategoryOrder
	case EventDeliveryAssigned, EventDeliveryCompleted, EventDeliveryUpdate:
		return CategoryDelivery
	case EventChallengeMilestone:
		return CategoryAchievement
	case EventZoneAssigned:
		return CategoryZone
	case EventAdminAlert:
		return CategoryAdmin
	default:
		return CategorySystem
	}
}
