package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/harvestlane/notifykit/pkg/logger"
	"github.com/harvestlane/notifykit/pkg/notifications"
)

// StatusChange describes an order status transition. CustomerID and
// VolunteerID override the order's own customer and referrer when set.
type StatusChange struct {
	OrderID     string `json:"order_id"`
	NewStatus   string `json:"new_status"`
	CustomerID  string `json:"customer_id,omitempty"`
	VolunteerID string `json:"volunteer_id,omitempty"`
}

type Milestone struct {
	VolunteerID   string `json:"volunteer_id"`
	Milestone     string `json:"milestone"`
	VolunteerName string `json:"volunteer_name,omitempty"`
}

// Announcement is a system broadcast. Priority and Channels override the
// classification policy when set. A non-empty Key makes the broadcast
// idempotent.
type Announcement struct {
	Title     string                      `json:"title"`
	Message   string                      `json:"message"`
	Target    notifications.TargetingSpec `json:"target"`
	Priority  notifications.Priority      `json:"priority,omitempty"`
	Channels  []notifications.Channel     `json:"channels,omitempty"`
	ActionURL string                      `json:"action_url,omitempty"`
	Metadata  map[string]any              `json:"metadata,omitempty"`
	Key       string                      `json:"key,omitempty"`
}

// AdminAlert is an operational message for administrators. Kind becomes the
// event status, so "payment_failed" alerts are classified as critical.
type AdminAlert struct {
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Kind      string         `json:"kind,omitempty"`
	ActionURL string         `json:"action_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NotifyOrderCreated tells admins about a new order and confirms receipt to
// the customer.
func (s *Service) NotifyOrderCreated(ctx context.Context, orderID string) (notifications.DispatchResult, error) {
	order, err := s.order(ctx, orderID)
	if err != nil {
		return notifications.DispatchResult{}, err
	}
	customer, err := s.customer(ctx, order.CustomerID)
	if err != nil {
		return notifications.DispatchResult{}, err
	}

	num := order.DisplayNumber()
	deliveries := []delivery{
		toAdmins().with(notifications.Message{
			Event:     notifications.Event{Type: notifications.EventAdminAlert, Status: notifications.AlertNewOrder},
			Title:     "New order #" + num,
			Body:      fmt.Sprintf("%s placed an order totalling %.2f.", orFallback(order.CustomerName, "A customer"), order.Total),
			ActionURL: "/admin/orders/" + order.ID,
			Metadata:  orderMeta(order),
		}),
	}
	if customer != nil {
		deliveries = append(deliveries, toRecipients(customerRecipient(*customer)).with(notifications.Message{
			Event:     notifications.Event{Type: notifications.EventOrderCreated},
			Title:     fmt.Sprintf("Order #%s received", num),
			Body:      fmt.Sprintf("Thanks %s, we received your order and will confirm it shortly.", orFallback(customer.Name, "for shopping with us")),
			ActionURL: "/orders/" + order.ID,
			Metadata:  orderMeta(order),
		}))
	}
	return s.run(ctx, idempotencyKey(string(notifications.EventOrderCreated), order.ID), deliveries...)
}

// NotifyOrderStatusChange informs the customer and the referring volunteer.
func (s *Service) NotifyOrderStatusChange(ctx context.Context, change StatusChange) (notifications.DispatchResult, error) {
	if change.OrderID == "" || change.NewStatus == "" {
		return notifications.DispatchResult{}, fmt.Errorf("%w: order id and status are required", ErrInvalidRequest)
	}
	order, err := s.order(ctx, change.OrderID)
	if err != nil {
		return notifications.DispatchResult{}, err
	}
	customer, err := s.customer(ctx, orFallback(change.CustomerID, order.CustomerID))
	if err != nil {
		return notifications.DispatchResult{}, err
	}
	referrer, err := s.volunteer(ctx, orFallback(change.VolunteerID, order.ReferredBy))
	if err != nil {
		return notifications.DispatchResult{}, err
	}

	status := change.NewStatus
	meta := orderMeta(order)
	meta["status"] = status

	var deliveries []delivery
	if customer != nil {
		deliveries = append(deliveries, toRecipients(customerRecipient(*customer)).with(notifications.Message{
			Event:     notifications.Event{Type: notifications.EventOrderUpdate, Status: status},
			Title:     orderStatusTitle(order.DisplayNumber(), status),
			Body:      fmt.Sprintf("Your order status is now %s.", humanize(status)),
			ActionURL: "/orders/" + order.ID,
			Metadata:  meta,
		}))
	}
	if r, ok := s.volunteerRecipient(ctx, referrer); ok {
		deliveries = append(deliveries, toRecipients(r).with(notifications.Message{
			Event:     notifications.Event{Type: notifications.EventReferralOrderUpdate, Status: status},
			Title:     fmt.Sprintf("Referral order #%s: %s", order.DisplayNumber(), phrase(status)),
			Body:      fmt.Sprintf("The order you referred for %s is now %s.", orFallback(order.CustomerName, "your customer"), humanize(status)),
			ActionURL: "/volunteer/referrals",
			Metadata:  meta,
		}))
	}
	return s.run(ctx, idempotencyKey(string(notifications.EventOrderUpdate), order.ID, status), deliveries...)
}

// NotifyPaymentFailed alerts the customer and administrators. Both messages
// bypass preferences.
func (s *Service) NotifyPaymentFailed(ctx context.Context, orderID string) (notifications.DispatchResult, error) {
	order, err := s.order(ctx, orderID)
	if err != nil {
		return notifications.DispatchResult{}, err
	}
	customer, err := s.customer(ctx, order.CustomerID)
	if err != nil {
		return notifications.DispatchResult{}, err
	}

	num := order.DisplayNumber()
	var deliveries []delivery
	if customer != nil {
		deliveries = append(deliveries, toRecipients(customerRecipient(*customer)).with(notifications.Message{
			Event:     notifications.Event{Type: notifications.EventPaymentFailed},
			Title:     fmt.Sprintf("Payment failed for order #%s", num),
			Body:      "We could not process the payment for your order. Please update your payment details to avoid cancellation.",
			ActionURL: "/orders/" + order.ID + "/payment",
			Metadata:  orderMeta(order),
		}))
	}
	deliveries = append(deliveries, toAdmins().with(notifications.Message{
		Event:     notifications.Event{Type: notifications.EventAdminAlert, Status: notifications.AlertPaymentFailed},
		Title:     "Payment failed: order #" + num,
		Body:      fmt.Sprintf("Payment of %.2f by %s failed.", order.Total, orFallback(order.CustomerName, "a customer")),
		ActionURL: "/admin/orders/" + order.ID,
		Metadata:  orderMeta(order),
	}))
	return s.run(ctx, idempotencyKey(string(notifications.EventPaymentFailed), order.ID), deliveries...)
}

func (s *Service) NotifyPaymentVerified(ctx context.Context, orderID string) (notifications.DispatchResult, error) {
	order, err := s.order(ctx, orderID)
	if err != nil {
		return notifications.DispatchResult{}, err
	}
	customer, err := s.customer(ctx, order.CustomerID)
	if err != nil || customer == nil {
		return notifications.DispatchResult{}, err
	}
	return s.run(ctx, idempotencyKey(string(notifications.EventPaymentVerified), order.ID),
		toRecipients(customerRecipient(*customer)).with(notifications.Message{
			Event:     notifications.Event{Type: notifications.EventPaymentVerified},
			Title:     fmt.Sprintf("Payment received for order #%s", order.DisplayNumber()),
			Body:      fmt.Sprintf("We verified your payment of %.2f. Thank you!", order.Total),
			ActionURL: "/orders/" + order.ID,
			Metadata:  orderMeta(order),
		}))
}

func (s *Service) NotifyDeliveryAssigned(ctx context.Context, orderID, volunteerID string) (notifications.DispatchResult, error) {
	order, vol, err := s.orderAndVolunteer(ctx, orderID, volunteerID)
	if err != nil {
		return notifications.DispatchResult{}, err
	}
	r, ok := s.volunteerRecipient(ctx, vol)
	if !ok {
		return notifications.DispatchResult{}, nil
	}
	num := order.DisplayNumber()
	return s.run(ctx, idempotencyKey(string(notifications.EventDeliveryAssigned), order.ID, vol.ID),
		toRecipients(r).with(notifications.Message{
			Event:     notifications.Event{Type: notifications.EventDeliveryAssigned},
			Title:     "New delivery assigned: order #" + num,
			Body:      fmt.Sprintf("Order #%s for %s has been assigned to you.", num, orFallback(order.CustomerName, "a customer")),
			ActionURL: "/volunteer/deliveries/" + order.ID,
			Metadata:  orderMeta(order),
		}))
}

func (s *Service) NotifyDeliveryCompleted(ctx context.Context, orderID, volunteerID string) (notifications.DispatchResult, error) {
	order, vol, err := s.orderAndVolunteer(ctx, orderID, volunteerID)
	if err != nil {
		return notifications.DispatchResult{}, err
	}
	r, ok := s.volunteerRecipient(ctx, vol)
	if !ok {
		return notifications.DispatchResult{}, nil
	}
	num := order.DisplayNumber()
	return s.run(ctx, idempotencyKey(string(notifications.EventDeliveryCompleted), order.ID, vol.ID),
		toRecipients(r).with(notifications.Message{
			Event:     notifications.Event{Type: notifications.EventDeliveryCompleted},
			Title:     "Delivery completed: order #" + num,
			Body:      fmt.Sprintf("Thanks %s! Order #%s was marked as delivered.", orFallback(vol.Name, "for your help"), num),
			ActionURL: "/volunteer/deliveries/" + order.ID,
			Metadata:  orderMeta(order),
		}))
}

func (s *Service) NotifyChallengeMilestone(ctx context.Context, m Milestone) (notifications.DispatchResult, error) {
	if m.VolunteerID == "" || m.Milestone == "" {
		return notifications.DispatchResult{}, fmt.Errorf("%w: volunteer id and milestone are required", ErrInvalidRequest)
	}
	vol, err := s.volunteer(ctx, m.VolunteerID)
	if err != nil {
		return notifications.DispatchResult{}, err
	}
	r, ok := s.volunteerRecipient(ctx, vol)
	if !ok {
		return notifications.DispatchResult{}, nil
	}
	name := orFallback(m.VolunteerName, vol.Name)
	return s.run(ctx, idempotencyKey(string(notifications.EventChallengeMilestone), vol.ID, m.Milestone),
		toRecipients(r).with(notifications.Message{
			Event:     notifications.Event{Type: notifications.EventChallengeMilestone},
			Title:     "Milestone reached: " + humanize(m.Milestone),
			Body:      fmt.Sprintf("Congratulations %s, you reached the %s milestone!", orFallback(name, "volunteer"), humanize(m.Milestone)),
			ActionURL: "/volunteer/challenges",
			Metadata:  map[string]any{"volunteer_id": vol.ID, "milestone": m.Milestone},
		}))
}

func (s *Service) NotifyZoneAssigned(ctx context.Context, volunteerID, zoneID string) (notifications.DispatchResult, error) {
	if volunteerID == "" || zoneID == "" {
		return notifications.DispatchResult{}, fmt.Errorf("%w: volunteer id and zone id are required", ErrInvalidRequest)
	}
	vol, err := s.volunteer(ctx, volunteerID)
	if err != nil {
		return notifications.DispatchResult{}, err
	}
	zone, err := s.source.GetZone(ctx, zoneID)
	if err != nil {
		return notifications.DispatchResult{}, s.lookupErr(ctx, "zone", zoneID, err)
	}
	r, ok := s.volunteerRecipient(ctx, vol)
	if !ok {
		return notifications.DispatchResult{}, nil
	}
	return s.run(ctx, idempotencyKey(string(notifications.EventZoneAssigned), vol.ID, zone.ID),
		toRecipients(r).with(notifications.Message{
			Event:     notifications.Event{Type: notifications.EventZoneAssigned},
			Title:     "Zone assigned: " + zone.Name,
			Body:      fmt.Sprintf("You have been assigned to the %s delivery zone.", zone.Name),
			ActionURL: "/volunteer/zones/" + zone.ID,
			Metadata:  map[string]any{"zone_id": zone.ID, "zone_name": zone.Name},
		}))
}

// NotifyDeliveryRequestUpdate informs the volunteer about their delivery
// request. New (pending) requests are also raised to administrators.
func (s *Service) NotifyDeliveryRequestUpdate(ctx context.Context, requestID, status, volunteerID string) (notifications.DispatchResult, error) {
	if requestID == "" || status == "" || volunteerID == "" {
		return notifications.DispatchResult{}, fmt.Errorf("%w: request id, status and volunteer id are required", ErrInvalidRequest)
	}
	vol, err := s.volunteer(ctx, volunteerID)
	if err != nil {
		return notifications.DispatchResult{}, err
	}
	meta := map[string]any{"request_id": requestID, "status": status}

	var deliveries []delivery
	if r, ok := s.volunteerRecipient(ctx, vol); ok {
		deliveries = append(deliveries, toRecipients(r).with(notifications.Message{
			Event:     notifications.Event{Type: notifications.EventDeliveryUpdate, Status: status},
			Title:     "Delivery request " + phrase(status),
			Body:      fmt.Sprintf("Your delivery request is now %s.", humanize(status)),
			ActionURL: "/volunteer/delivery-requests/" + requestID,
			Metadata:  meta,
		}))
	}
	if status == notifications.StatusPending {
		deliveries = append(deliveries, toAdmins().with(notifications.Message{
			Event:     notifications.Event{Type: notifications.EventAdminAlert, Status: notifications.AlertNewDeliveryRequest},
			Title:     "New delivery request",
			Body:      fmt.Sprintf("%s submitted a delivery request.", orFallback(vol.Name, "A volunteer")),
			ActionURL: "/admin/delivery-requests/" + requestID,
			Metadata:  meta,
		}))
	}
	return s.run(ctx, idempotencyKey(string(notifications.EventDeliveryUpdate), requestID, status), deliveries...)
}

// CreateSystemAnnouncement broadcasts to the given target. Scope "all" also
// reaches the public board.
func (s *Service) CreateSystemAnnouncement(ctx context.Context, a Announcement) (notifications.DispatchResult, error) {
	if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.Message) == "" {
		return notifications.DispatchResult{}, fmt.Errorf("%w: title and message are required", ErrInvalidRequest)
	}
	if a.Target.Scope == "" {
		a.Target = notifications.TargetAll()
	}
	var key string
	if a.Key != "" {
		key = idempotencyKey(string(notifications.EventSystemAnnouncement), a.Key)
	}
	return s.run(ctx, key, delivery{target: &a.Target}.with(notifications.Message{
		Event:     notifications.Event{Type: notifications.EventSystemAnnouncement},
		Title:     a.Title,
		Body:      a.Message,
		Priority:  a.Priority,
		Channels:  a.Channels,
		ActionURL: a.ActionURL,
		Metadata:  a.Metadata,
	}))
}

func (s *Service) NotifyAdmins(ctx context.Context, alert AdminAlert) (notifications.DispatchResult, error) {
	if strings.TrimSpace(alert.Title) == "" {
		return notifications.DispatchResult{}, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	return s.run(ctx, "", toAdmins().with(notifications.Message{
		Event:     notifications.Event{Type: notifications.EventAdminAlert, Status: alert.Kind},
		Title:     alert.Title,
		Body:      alert.Message,
		ActionURL: alert.ActionURL,
		Metadata:  alert.Metadata,
	}))
}

func (s *Service) order(ctx context.Context, id string) (Order, error) {
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidRequest)
	}
	o, err := s.source.GetOrder(ctx, id)
	if err != nil {
		return Order{}, s.lookupErr(ctx, "order", id, err)
	}
	return o, nil
}

// customer returns nil for an empty id: guest orders have no customer.
func (s *Service) customer(ctx context.Context, id string) (*Customer, error) {
	if id == "" {
		return nil, nil
	}
	c, err := s.source.GetCustomer(ctx, id)
	if err != nil {
		return nil, s.lookupErr(ctx, "customer", id, err)
	}
	return &c, nil
}

// volunteer returns nil for an empty id.
func (s *Service) volunteer(ctx context.Context, id string) (*Volunteer, error) {
	if id == "" {
		return nil, nil
	}
	v, err := s.source.GetVolunteer(ctx, id)
	if err != nil {
		return nil, s.lookupErr(ctx, "volunteer", id, err)
	}
	return &v, nil
}

func (s *Service) orderAndVolunteer(ctx context.Context, orderID, volunteerID string) (Order, *Volunteer, error) {
	if volunteerID == "" {
		return Order{}, nil, fmt.Errorf("%w: volunteer id is required", ErrInvalidRequest)
	}
	order, err := s.order(ctx, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	vol, err := s.volunteer(ctx, volunteerID)
	if err != nil {
		return Order{}, nil, err
	}
	return order, vol, nil
}

// volunteerRecipient addresses a volunteer by auth identity. Volunteers who
// never signed in cannot see in-app notifications and are skipped.
func (s *Service) volunteerRecipient(ctx context.Context, v *Volunteer) (notifications.Recipient, bool) {
	if v == nil {
		return notifications.Recipient{}, false
	}
	if v.AuthID == "" {
		s.logger.DebugContext(ctx, "volunteer has no auth identity, skipping", slog.String("volunteer_id", v.ID))
		return notifications.Recipient{}, false
	}
	r := notifications.Volunteer(v.AuthID).WithEmail(v.Email)
	r.Name = v.Name
	return r, true
}

func customerRecipient(c Customer) notifications.Recipient {
	r := notifications.Customer(c.ID).WithEmail(c.Email)
	r.Name = c.Name
	return r
}

func (s *Service) lookupErr(ctx context.Context, kind, id string, err error) error {
	s.logger.WarnContext(ctx, "failed to load event context",
		slog.String("entity", kind), slog.String("id", id), logger.Error(err))
	return err
}

func orderMeta(o Order) map[string]any {
	return map[string]any{"order_id": o.ID, "order_number": o.DisplayNumber()}
}

func orderStatusTitle(num, status string) string {
	switch status {
	case notifications.StatusConfirmed:
		return fmt.Sprintf("Order #%s confirmed", num)
	case notifications.StatusPreparing:
		return fmt.Sprintf("Order #%s is being prepared", num)
	case notifications.StatusOutForDelivery:
		return fmt.Sprintf("Order #%s is out for delivery", num)
	case notifications.StatusDelivered:
		return fmt.Sprintf("Order #%s delivered", num)
	case notifications.StatusCancelled:
		return fmt.Sprintf("Order #%s cancelled", num)
	default:
		return fmt.Sprintf("Order #%s updated: %s", num, phrase(status))
	}
}

// phrase turns a snake_case status into lower-case words.
func phrase(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

// humanize title-cases a snake_case value: "out_for_delivery" becomes
// "Out For Delivery". cases.Caser is stateful, so one is built per call.
func humanize(s string) string {
	return cases.Title(language.English).String(phrase(s))
}

func orFallback(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
