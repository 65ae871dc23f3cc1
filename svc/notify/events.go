package notify

import (
	"context"
	"fmt"

	"github.com/harvestlane/notifykit/pkg/notifications"
)

// EventPayload carries the arguments of any trigger. Each event reads only
// the fields it needs.
type EventPayload struct {
	OrderID       string `json:"order_id,omitempty"`
	Status        string `json:"status,omitempty"`
	CustomerID    string `json:"customer_id,omitempty"`
	VolunteerID   string `json:"volunteer_id,omitempty"`
	VolunteerName string `json:"volunteer_name,omitempty"`
	Milestone     string `json:"milestone,omitempty"`
	ZoneID        string `json:"zone_id,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
}

// Trigger routes a named business event to its trigger. Broadcast events
// (announcements, admin alerts) have dedicated entry points and are rejected.
func (s *Service) Trigger(ctx context.Context, event notifications.EventType, p EventPayload) (notifications.DispatchResult, error) {
	switch event {
	case notifications.EventOrderCreated:
		return s.NotifyOrderCreated(ctx, p.OrderID)
	case notifications.EventOrderUpdate:
		return s.NotifyOrderStatusChange(ctx, StatusChange{
			OrderID:     p.OrderID,
			NewStatus:   p.Status,
			CustomerID:  p.CustomerID,
			VolunteerID: p.VolunteerID,
		})
	case notifications.EventPaymentFailed:
		return s.NotifyPaymentFailed(ctx, p.OrderID)
	case notifications.EventPaymentVerified:
		return s.NotifyPaymentVerified(ctx, p.OrderID)
	case notifications.EventDeliveryAssigned:
		return s.NotifyDeliveryAssigned(ctx, p.OrderID, p.VolunteerID)
	case notifications.EventDeliveryCompleted:
		return s.NotifyDeliveryCompleted(ctx, p.OrderID, p.VolunteerID)
	case notifications.EventChallengeMilestone:
		return s.NotifyChallengeMilestone(ctx, Milestone{
			VolunteerID:   p.VolunteerID,
			Milestone:     p.Milestone,
			VolunteerName: p.VolunteerName,
		})
	case notifications.EventZoneAssigned:
		return s.NotifyZoneAssigned(ctx, p.VolunteerID, p.ZoneID)
	case notifications.EventDeliveryUpdate:
		return s.NotifyDeliveryRequestUpdate(ctx, p.RequestID, p.Status, p.VolunteerID)
	default:
		return notifications.DispatchResult{}, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}
