package handler

import (
	printapp "github.com/cravings/printagent/internal/application/printing"
	"github.com/cravings/printagent/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// PrintHandler exposes the print pipeline to the shell and the POS UI
type PrintHandler struct {
	BaseHandler
	service *printapp.PrintService
}

// NewPrintHandler creates a new PrintHandler
func NewPrintHandler(service *printapp.PrintService) *PrintHandler {
	return &PrintHandler{service: service}
}

// Routes returns the print route groups. navMiddleware runs only on
// navigations, which is where rate limiting belongs.
func (h *PrintHandler) Routes(navMiddleware ...gin.HandlerFunc) []router.RouteRegistrar {
	nav := router.NewDomainGroup("navigation", "/navigations")
	nav.Use(navMiddleware...)
	nav.POST("", h.Navigate)

	printing := router.NewDomainGroup("print", "/print")
	printing.GET("/jobs", h.ListJobs)
	printing.GET("/jobs/history", h.History)
	printing.GET("/settings", h.GetSettings)
	printing.PUT("/settings", h.SaveSettings)
	printing.GET("/printers", h.ListPrinters)

	status := router.NewDomainGroup("status", "/status")
	status.POST("/update", h.UpdateStatus)

	return []router.RouteRegistrar{nav, printing, status}
}

// Navigate handles POST /navigations. Receipt URLs are taken over by the
// agent (202, action deny); anything else is left to the caller (200, allow).
func (h *PrintHandler) Navigate(c *gin.Context) {
	var req printapp.NavigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.service.Navigate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Action == printapp.ActionDeny {
		h.Accepted(c, result)
		return
	}
	h.Success(c, result)
}

// ListJobs handles GET /print/jobs
func (h *PrintHandler) ListJobs(c *gin.Context) {
	h.Success(c, h.service.Jobs())
}

// History handles GET /print/jobs/history
func (h *PrintHandler) History(c *gin.Context) {
	var req printapp.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	records, err := h.service.History(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, records)
}

// GetSettings handles GET /print/settings
func (h *PrintHandler) GetSettings(c *gin.Context) {
	h.Success(c, h.service.Settings())
}

// SaveSettings handles PUT /print/settings. Fields are coerced leniently;
// unusable values fall back to defaults rather than failing the request.
func (h *PrintHandler) SaveSettings(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		h.BindError(c, err)
		return
	}

	saved, err := h.service.SaveSettings(raw)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, saved)
}

// ListPrinters handles GET /print/printers
func (h *PrintHandler) ListPrinters(c *gin.Context) {
	printers, err := h.service.Printers(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, printers)
}

// UpdateStatus handles POST /status/update
func (h *PrintHandler) UpdateStatus(c *gin.Context) {
	var req printapp.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	h.Accepted(c, h.service.UpdateStatus(c.Request.Context(), req))
}
