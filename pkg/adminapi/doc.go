// Package adminapi is the HTTP adapter over the email queue.
//
// It exposes listing, enqueueing, editing and bulk operations on queued
// emails, the approval workflow, manual delivery and retry, queue stats,
// the audit trail and the Postmark webhook endpoint. Routes are mounted on a
// chi router returned by API.Router:
//
//	api, err := adminapi.New(svc, d, cfg.Admin,
//		adminapi.WithAudit(auditLog),
//		adminapi.WithTracker(tracker),
//		adminapi.WithLogger(log),
//	)
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	err = srv.Run(ctx, api.Router())
//
// Handlers are typed functions of a bound request. Wrap runs binders from
// package binder and renders the returned Response; errors are classified
// into status codes and written as an Envelope with an ErrorDetail.
//
// Admin routes require "Authorization: Bearer <token>" when Config.Token is
// set. The webhook uses basic auth as configured in Postmark. Health probes
// are public.
package adminapi
