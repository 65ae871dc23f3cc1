// Package logger builds *slog.Logger instances with functional options and
// provides attribute constructors so that keys stay consistent across the
// notification pipeline (recipient_id, role, channel, notification_id, ...).
//
// New wraps the chosen slog handler so the registered ContextExtractor
// callbacks run on every record. This is how request scoped values such as
// the request id end up in dispatcher logs without being passed around.
//
//	log := logger.New(
//	    logger.WithEnvironment(os.Getenv("APP_ENV"), "notifyd"),
//	    logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	log.InfoContext(ctx, "dispatched",
//	    logger.EventType("order_update"),
//	    logger.Count("created", 2),
//	)
//
// Error returns an empty attribute for a nil error, so it is safe to pass
// unconditionally.
package logger
