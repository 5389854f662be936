package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/samda/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/samda/internal/payment/domain"
)

type dashboardResponse struct {
	Outstanding    []invoicedomain.InvoiceView `json:"outstanding_invoices"`
	RecentPayments []paymentdomain.PaymentView `json:"recent_payments"`
}

// GetDashboard is the landing summary: the oldest unpaid invoices and the
// latest payments received.
func (s *Server) GetDashboard(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	ctx := c.Request.Context()
	outstanding, err := s.invoiceSvc.Outstanding(ctx, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	recent, err := s.paymentSvc.RecentPayments(ctx, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dashboardResponse{
		Outstanding:    outstanding,
		RecentPayments: recent,
	}})
}
