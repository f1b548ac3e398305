package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/interview-session-service/internal/metrics"
	"github.com/SAP-F-2025/interview-session-service/internal/services"
	"github.com/SAP-F-2025/interview-session-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	interviewHandler *InterviewHandler
}

func NewHandlerManager(serviceManager services.ServiceManager, logger utils.Logger) *HandlerManager {
	return &HandlerManager{
		interviewHandler: NewInterviewHandler(serviceManager, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		interviews := v1.Group("/interviews")
		{
			interviews.POST("", hm.interviewHandler.ScheduleInterviews)

			// Session lifecycle, authenticated by the session token
			interviews.POST("/:id/start_interview", hm.interviewHandler.StartInterview)
			interviews.POST("/:id/validate_session", hm.interviewHandler.ValidateSession)
			interviews.POST("/:id/report_security_event", hm.interviewHandler.ReportSecurityEvent)
			interviews.POST("/:id/invalidate_session", hm.interviewHandler.InvalidateSession)
			interviews.POST("/:id/extend_time", hm.interviewHandler.ExtendTime)
			interviews.POST("/:id/submit_response", hm.interviewHandler.SubmitResponse)
			interviews.POST("/:id/complete_interview", hm.interviewHandler.CompleteInterview)

			interviews.GET("/:id/results", hm.interviewHandler.GetResults)
		}

		v1.GET("/interview-batches/:batch_id/export", hm.interviewHandler.ExportBatch)
	}
}

// NewRouter builds the engine with the shared middleware stack
func NewRouter(hm *HandlerManager, logger utils.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestID(), utils.LoggerMiddleware(logger), metrics.Middleware())
	hm.SetupRoutes(router)
	return router
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "interview-session-service",
	})
}
