// Package notify hosts the event triggers and the HTTP surface of the
// notification engine.
//
// Triggers (NotifyOrderCreated, NotifyOrderStatusChange, NotifyPaymentFailed
// and friends) load the order, volunteer, customer or zone the event refers
// to from a Source, write the human-facing copy and hand one message per
// audience to notifications.Notifier. A missing entity aborts the trigger
// before anything is stored.
//
// With an IdempotencyGuard configured, a trigger claims the key
// "<event>:<entity ids>:<status>" first; repeats within the guard TTL return
// a result with Duplicate set. A failed dispatch releases the key. A guard
// outage is logged and the trigger proceeds.
//
// NewRouter exposes the recipient inbox, preferences, the live stream and
// the admin-only broadcast and event endpoints. Identity comes from the
// X-Recipient-ID and X-Recipient-Role headers set by the gateway.
package notify
