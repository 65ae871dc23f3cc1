// Package httpserver runs an http.Handler until a context is cancelled and
// then shuts it down gracefully.
//
// Signal handling is the caller's job; pair Run with signal.NotifyContext
// and an errgroup:
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// WriteTimeout defaults to zero because the notification stream endpoint
// holds responses open. HealthCheckHandler serves both liveness and
// readiness probes.
package httpserver
