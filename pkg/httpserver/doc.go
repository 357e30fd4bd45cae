// Package httpserver runs the admin HTTP adapter with graceful shutdown and
// structured logging.
//
// Server wraps *http.Server. Run blocks until its context is cancelled or
// Shutdown is called, then drains in-flight requests within the configured
// shutdown timeout. Listen errors are wrapped with ErrStart and shutdown
// errors with ErrShutdown.
//
// HealthCheckHandler builds liveness and readiness probes:
//
//	r.Get("/health/live", httpserver.HealthCheckHandler(log))
//	r.Get("/health/ready", httpserver.HealthCheckHandler(log, pool.Ping))
//
// The binary owns process signals:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, api.Router()); err != nil {
//		log.Error("admin api stopped", logger.Error(err))
//	}
package httpserver
