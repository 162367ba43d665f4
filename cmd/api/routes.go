package main

import (
	"context"
	"net/http"

	"topup-ledger/internal/audit"
	"topup-ledger/internal/auth"
	"topup-ledger/internal/httpapi"
	"topup-ledger/internal/ledger"
	"topup-ledger/internal/rbac"
	"topup-ledger/internal/reporting"
	"topup-ledger/internal/topup"
	"topup-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routeDeps struct {
	Auth         *auth.Manager
	Processor    *topup.Processor
	MaxBodyBytes int64
	Ledger       ledger.Reader
	Audit        *audit.Service
	Reports      *reporting.Service
	Registry     *prometheus.Registry
	Ready        func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(c.Request.Context()); err != nil {
				logger.FromGin(c).Warn("readiness check failed", "err", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if d.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	// Provider webhooks (public, authenticated by HMAC signature).
	r.POST("/webhooks/btcpay", topup.WebhookHandler{
		Processor:    d.Processor,
		MaxBodyBytes: d.MaxBodyBytes,
	}.Handle)

	// Operator read API
	h := httpapi.Handlers{Ledger: d.Ledger, Audit: d.Audit, Reports: d.Reports}
	ops := r.Group("/v1/ops")
	{
		ops.GET("/me", auth.RequireAccessToken(d.Auth), h.Me)

		support := ops.Group("", httpapi.RequireOperator(d.Auth, rbac.RoleFinance, rbac.RoleSupport)...)
		support.GET("/settlements/:invoice_id", h.GetSettlement)
		support.GET("/users/:user_id/balance", h.GetBalance)

		finance := ops.Group("", httpapi.RequireOperator(d.Auth, rbac.RoleFinance)...)
		finance.GET("/users/:user_id/deposits", h.ListDeposits)
		finance.GET("/reports/credits", h.CreditSummary)
	}
}
