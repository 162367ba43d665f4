package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"topup-ledger/internal/audit"
	"topup-ledger/internal/auth"
	"topup-ledger/internal/ledger"
	"topup-ledger/internal/rbac"
	"topup-ledger/internal/reporting"
	"topup-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers groups the operator read API for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
// Nothing here mutates money.
type Handlers struct {
	Ledger  ledger.Reader
	Audit   *audit.Service
	Reports *reporting.Service
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type settlementResponse struct {
	Settlement ledger.Settlement `json:"settlement"`
	Audit      []audit.Event     `json:"audit"`
}

// GetSettlement returns the settlement row for an invoice plus its webhook audit trail.
// RBAC: finance, support.
func (h Handlers) GetSettlement(c *gin.Context) {
	if h.Ledger == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ledger not configured"})
		return
	}
	invoiceID := c.Param("invoice_id")
	if invoiceID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invoice_id required"})
		return
	}

	st, err := h.Ledger.GetSettlement(c.Request.Context(), invoiceID)
	if err != nil {
		h.lookupFailed(c, err, "settlement lookup failed")
		return
	}

	out := settlementResponse{Settlement: st, Audit: []audit.Event{}}
	if h.Audit != nil {
		evs, err := h.Audit.ListByInvoice(c.Request.Context(), invoiceID, defaultListLimit)
		if err != nil {
			logger.FromGin(c).Warn("audit listing failed", "invoice_id", invoiceID, "err", err)
		} else if evs != nil {
			out.Audit = evs
		}
	}
	c.JSON(http.StatusOK, out)
}

// GetBalance returns a user's current balance.
// RBAC: finance, support.
func (h Handlers) GetBalance(c *gin.Context) {
	if h.Ledger == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ledger not configured"})
		return
	}
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	bal, err := h.Ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.lookupFailed(c, err, "balance lookup failed")
		return
	}
	c.JSON(http.StatusOK, bal)
}

// ListDeposits returns a user's deposits, newest first.
// RBAC: finance.
func (h Handlers) ListDeposits(c *gin.Context) {
	if h.Ledger == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ledger not configured"})
		return
	}
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	ds, err := h.Ledger.ListDeposits(c.Request.Context(), userID, limit)
	if err != nil {
		h.lookupFailed(c, err, "deposit listing failed")
		return
	}
	if ds == nil {
		ds = []ledger.Deposit{}
	}
	c.JSON(http.StatusOK, gin.H{"deposits": ds})
}

// CreditSummary aggregates credited deposits over ?from=&to= (RFC 3339).
// RBAC: finance.
func (h Handlers) CreditSummary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be an RFC 3339 timestamp"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be an RFC 3339 timestamp"})
		return
	}
	req := reporting.CreditSummaryRequest{Range: reporting.TimeRange{From: from.UTC(), To: to.UTC()}}
	if userID := c.Query("user_id"); userID != "" {
		if _, err := uuid.Parse(userID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id must be a uuid"})
			return
		}
		req.UserID = userID
	}

	out, err := h.Reports.CreditSummary(c.Request.Context(), req)
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("credit summary failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "credit summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// Me echoes the caller's identity; useful for checking a freshly issued token.
func (h Handlers) Me(c *gin.Context) {
	id, _ := auth.OperatorID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"operator_id": id, "role": role})
}

func (h Handlers) lookupFailed(c *gin.Context, err error, msg string) {
	if errors.Is(err, ledger.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	logger.FromGin(c).Error(msg, "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func userIDParam(c *gin.Context) (string, bool) {
	userID := c.Param("user_id")
	if _, err := uuid.Parse(userID); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id must be a uuid"})
		return "", false
	}
	return userID, true
}

// Convenience middleware bundles.

func RequireOperator(m *auth.Manager, roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{auth.RequireAccessToken(m), rbac.RequireAnyRole(roles...)}
}
