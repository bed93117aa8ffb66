package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/posreports/backend/internal/domain/report"
	"github.com/posreports/backend/internal/interfaces/http/dto"
)

// ReportHandler serves persisted daily summaries and the report index
type ReportHandler struct {
	BaseHandler
	index  report.IndexStore
	reader report.ReportReader
	now    func() time.Time
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(index report.IndexStore, reader report.ReportReader) *ReportHandler {
	return &ReportHandler{
		index:  index,
		reader: reader,
		now:    time.Now,
	}
}

// RegisterRoutes mounts the report routes under rg
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	reports := rg.Group("/reports")
	reports.GET("", h.ListReports)
	reports.GET("/:date", h.GetReport)
}

// ListReports returns the report index: every date with a persisted
// summary, ascending, and the latest of them.
func (h *ReportHandler) ListReports(c *gin.Context) {
	idx, err := h.index.Load(c.Request.Context())
	if err != nil {
		h.InternalError(c, "failed to load report index", err)
		return
	}
	h.Success(c, dto.NewReportIndexResponse(idx.Document(h.now())))
}

// GetReport returns the daily summary and category report of one date
func (h *ReportHandler) GetReport(c *gin.Context) {
	date, err := report.ParseDate(c.Param("date"), time.UTC)
	if err != nil {
		h.Error(c, dto.ErrCodeInvalidDate, err.Error())
		return
	}

	daily, category, err := h.reader.FindDay(c.Request.Context(), date.Format(report.DateLayout))
	if err != nil {
		if errors.Is(err, report.ErrReportNotFound) {
			h.NotFound(c, "no report for "+date.Format(report.DateLayout))
			return
		}
		h.InternalError(c, "failed to load report", err)
		return
	}
	h.Success(c, dto.NewReportDayResponse(daily, category))
}
