package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/interview-session-service/internal/lock"
	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/SAP-F-2025/interview-session-service/internal/services"
	"github.com/SAP-F-2025/interview-session-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader may replace the idempotency_key body field on scheduling
const IdempotencyKeyHeader = "Idempotency-Key"

type InterviewHandler struct {
	BaseHandler
	scheduler services.SchedulerService
	monitor   services.MonitorService
	scoring   services.ScoringService
	export    services.ExportService
}

func NewInterviewHandler(serviceManager services.ServiceManager, logger utils.Logger) *InterviewHandler {
	return &InterviewHandler{
		BaseHandler: NewBaseHandler(logger),
		scheduler:   serviceManager.Scheduler(),
		monitor:     serviceManager.Monitor(),
		scoring:     serviceManager.Scoring(),
		export:      serviceManager.Export(),
	}
}

// ===== REQUEST STRUCTURES =====

// TokenRequest is the body of calls that only authenticate with the session token
type TokenRequest struct {
	SessionToken string `json:"session_token"`
}

type ReportEventRequest struct {
	SessionToken string                   `json:"session_token"`
	EventType    models.SecurityEventType `json:"event_type"`
}

type InvalidateRequest struct {
	SessionToken string `json:"session_token"`
	Reason       string `json:"reason"`
}

type ExtendTimeRequest struct {
	SessionToken      string `json:"session_token"`
	AdditionalMinutes int    `json:"additional_minutes"`
}

type SubmitResponseBody struct {
	SessionToken string `json:"session_token"`
	services.SubmitResponseRequest
}

// ScheduleInterviews creates sessions for one student or every active student
// @Summary Schedule interviews
// @Tags interviews
// @Accept json
// @Produce json
// @Param request body services.ScheduleRequest true "Schedule request"
// @Param Idempotency-Key header string false "Retry key"
// @Success 201 {object} services.ScheduleResult
// @Success 200 {object} services.ScheduleResult "Replayed"
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /interviews [post]
func (h *InterviewHandler) ScheduleInterviews(c *gin.Context) {
	var req services.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)
	}

	h.LogRequest(c, "Scheduling interviews", "all_active_students", req.AllActiveStudents, "student_id", req.StudentID)

	result, err := h.scheduler.Schedule(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// StartInterview opens a scheduled session
// @Router /interviews/{id}/start_interview [post]
func (h *InterviewHandler) StartInterview(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req TokenRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	state, err := h.monitor.StartInterview(c.Request.Context(), id, sessionToken(c, req.SessionToken))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// ValidateSession reports whether the session may continue
// @Router /interviews/{id}/validate_session [post]
func (h *InterviewHandler) ValidateSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req TokenRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	resp, err := h.monitor.ValidateSession(c.Request.Context(), id, sessionToken(c, req.SessionToken))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ReportSecurityEvent applies one proctoring event to the session counters
// @Router /interviews/{id}/report_security_event [post]
func (h *InterviewHandler) ReportSecurityEvent(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req ReportEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.monitor.ReportEvent(c.Request.Context(), id, sessionToken(c, req.SessionToken), req.EventType)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// InvalidateSession ends the session without a score
// @Router /interviews/{id}/invalidate_session [post]
func (h *InterviewHandler) InvalidateSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req InvalidateRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	state, err := h.monitor.InvalidateSession(c.Request.Context(), id, sessionToken(c, req.SessionToken), req.Reason)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// ExtendTime moves the end of the session window when the security config allows it
// @Router /interviews/{id}/extend_time [post]
func (h *InterviewHandler) ExtendTime(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req ExtendTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	state, err := h.monitor.ExtendTime(c.Request.Context(), id, sessionToken(c, req.SessionToken), req.AdditionalMinutes)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// SubmitResponse records a scored answer
// @Router /interviews/{id}/submit_response [post]
func (h *InterviewHandler) SubmitResponse(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req SubmitResponseBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	response, err := h.monitor.SubmitResponse(c.Request.Context(), id, sessionToken(c, req.SessionToken), &req.SubmitResponseRequest)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

// CompleteInterview closes the session and returns its final results
// @Router /interviews/{id}/complete_interview [post]
func (h *InterviewHandler) CompleteInterview(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	var req TokenRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	state, err := h.monitor.CompleteInterview(c.Request.Context(), id, sessionToken(c, req.SessionToken))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetResults returns the finalized score breakdown
// @Router /interviews/{id}/results [get]
func (h *InterviewHandler) GetResults(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	results, err := h.scoring.GetResults(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// ExportBatch downloads the results of one scheduling batch
// @Param format query string false "xlsx (default) or csv"
// @Router /interview-batches/{batch_id}/export [get]
func (h *InterviewHandler) ExportBatch(c *gin.Context) {
	batchID := ParseStringIDParam(c, "batch_id")
	if batchID == "" {
		return
	}
	format := services.ExportFormat(c.DefaultQuery("format", string(services.ExportFormatExcel)))

	data, err := h.export.ExportBatch(c.Request.Context(), batchID, format)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	contentType := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if format == services.ExportFormatCSV {
		contentType = "text/csv"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=interview-batch-%s.%s", batchID, format))
	c.Data(http.StatusOK, contentType, data)
}

func (h *InterviewHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		message := "Validation failed"
		if errors.Is(err, services.ErrInvalidSchedule) {
			message = "Invalid schedule"
		}
		h.RespondWithError(c, http.StatusBadRequest, message, err, validationErrors)
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidSchedule):
		h.RespondWithError(c, http.StatusBadRequest, "Invalid schedule", err)
	case errors.Is(err, services.ErrUnknownEventType):
		h.RespondWithError(c, http.StatusBadRequest, "Unknown security event type", err)
	case errors.Is(err, services.ErrUnknownSession):
		h.RespondWithError(c, http.StatusNotFound, "Unknown session", err)
	case errors.Is(err, services.ErrUnknownBatch):
		h.RespondWithError(c, http.StatusNotFound, "Unknown scheduling batch", err)
	case errors.Is(err, services.ErrExtensionNotPermitted):
		h.RespondWithError(c, http.StatusForbidden, "Time extension not permitted", err)
	case errors.Is(err, services.ErrSessionNotOpen):
		h.RespondWithError(c, http.StatusConflict, "Session window has not opened yet", err)
	case errors.Is(err, services.ErrSessionNotActive):
		h.RespondWithError(c, http.StatusConflict, "Session is not active", err)
	case errors.Is(err, services.ErrIdempotencyKeyConflict):
		h.RespondWithError(c, http.StatusConflict, "Idempotency key already used for a different request", err)
	case errors.Is(err, services.ErrResultsNotAvailable):
		h.RespondWithError(c, http.StatusConflict, "Results not available yet", err)
	case errors.Is(err, lock.ErrLockTimeout):
		h.RespondWithError(c, http.StatusServiceUnavailable, "Session busy, retry", err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}
