package topup

import (
	"io"
	"net/http"

	"topup-ledger/internal/btcpay"
	"topup-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WebhookHandler adapts the BTCPay webhook to the processor.
//
// The body is read as raw bytes and never re-encoded before verification;
// the signature covers the exact bytes the processor sent.
type WebhookHandler struct {
	Processor    *Processor
	MaxBodyBytes int64
}

func (h WebhookHandler) Handle(c *gin.Context) {
	if h.Processor == nil {
		logger.FromGin(c).Error("webhook processor not configured")
		c.AbortWithStatusJSON(http.StatusInternalServerError, Result{Outcome: OutcomeTransient}.Body())
		return
	}

	body := c.Request.Body
	if h.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.MaxBodyBytes)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		res := h.Processor.Unreadable(c.Request.Context(), c.ClientIP(), err)
		c.JSON(res.HTTPStatus(), res.Body())
		return
	}

	res := h.Processor.Process(c.Request.Context(), Delivery{
		Body:      raw,
		Signature: btcpay.SignatureFromHeader(c.Request.Header),
		RemoteIP:  c.ClientIP(),
	})
	c.JSON(res.HTTPStatus(), res.Body())
}
