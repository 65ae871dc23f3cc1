// Package notifications implements notification targeting and delivery:
// who receives an event, whether they want it, how urgent it is and over
// which channels it goes out.
//
// # Architecture
//
// Data flows one direction through small, separately testable parts:
//
//   - Resolver: turns a TargetingSpec into deduplicated recipients across the
//     volunteer, customer and admin namespaces plus the public bucket
//   - Gate: applies per-recipient preference opt-outs, with an unconditional
//     override for critical events
//   - Policy: classifies an event into a priority and a channel set
//   - Dispatcher: persists one record per recipient in a single batch, then
//     queues external channel sends on a SendPool
//   - Notifier: orchestrates the above and exposes the reading surface
//
// # Basic Usage
//
//	dir := notifications.NewMemoryDirectory()
//	store := notifications.NewMemoryStorage()
//
//	pool := notifications.NewSendPool(store, notifications.WithWorkers(4))
//	pool.Start()
//	defer pool.Stop(ctx)
//
//	dispatcher := notifications.NewDispatcher(store, notifications.NewGate(dir),
//	    notifications.WithChannelSender(notifications.NewEmailChannel(sender)),
//	    notifications.WithSendPool(pool),
//	)
//	notifier := notifications.NewNotifier(
//	    notifications.NewResolver(dir, []string{"ops@example.com"}),
//	    dispatcher,
//	)
//
//	res, err := notifier.Notify(ctx, notifications.TargetRole(notifications.RoleAdmin), notifications.Message{
//	    Event: notifications.Event{Type: notifications.EventAdminAlert, Status: notifications.AlertNewOrder},
//	    Title: "New order",
//	    Body:  "Order #1042 was placed",
//	})
//
// # Delivery guarantees
//
// In-app records are written before any channel attempt and a channel
// failure never touches another recipient's record. Store failures are the
// only errors Dispatch returns. Repeated calls with the same content create
// repeated records; deduplicating retried events is the caller's job.
//
// # Storage Implementations
//
// MemoryStorage and MemoryDirectory are meant for development and tests.
// The pgstore subpackage provides PostgreSQL implementations.
package notifications
