package handler

import (
	"net/http"

	"sql-smart-go/internal/service"
	"sql-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AnalyticsHandler 处理发票仪表盘的只读接口。
type AnalyticsHandler struct {
	service service.AnalyticsService
}

// NewAnalyticsHandler 创建一个新的 AnalyticsHandler。
func NewAnalyticsHandler(service service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// Stats 处理 GET /api/stats。
func (h *AnalyticsHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	respond(c, "Stats", "Failed to fetch stats", stats, err)
}

// Invoices 处理 GET /api/invoices?search=。
func (h *AnalyticsHandler) Invoices(c *gin.Context) {
	invoices, err := h.service.Invoices(c.Request.Context(), c.Query("search"))
	respond(c, "Invoices", "Failed to fetch invoices", invoices, err)
}

// InvoiceTrends 处理 GET /api/invoice-trends。
func (h *AnalyticsHandler) InvoiceTrends(c *gin.Context) {
	trends, err := h.service.InvoiceTrends(c.Request.Context())
	respond(c, "InvoiceTrends", "Failed to fetch invoice trends", trends, err)
}

// TopVendors 处理 GET /api/vendors/top10。
func (h *AnalyticsHandler) TopVendors(c *gin.Context) {
	vendors, err := h.service.TopVendors(c.Request.Context())
	respond(c, "TopVendors", "Failed to fetch top vendors", vendors, err)
}

// CategorySpend 处理 GET /api/category-spend。
func (h *AnalyticsHandler) CategorySpend(c *gin.Context) {
	spend, err := h.service.CategorySpend(c.Request.Context())
	respond(c, "CategorySpend", "Failed to fetch category spend", spend, err)
}

// CashOutflow 处理 GET /api/cash-outflow。
func (h *AnalyticsHandler) CashOutflow(c *gin.Context) {
	outflow, err := h.service.CashOutflow(c.Request.Context())
	respond(c, "CashOutflow", "Failed to fetch cash outflow", outflow, err)
}

func respond(c *gin.Context, op, failure string, data any, err error) {
	if err != nil {
		log.Errorf("%s: 查询失败, error: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": failure,
			"data":    nil,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    data,
	})
}
