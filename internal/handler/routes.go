package handler

import (
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/daonbank/kcs/kcs-backend/internal/middleware"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, apiLimiter, evaluateLimiter *middleware.RateLimiter, applicationHandler *ApplicationHandler, scoringHandler *ScoringHandler, adminHandler *AdminHandler, monitoringHandler *MonitoringHandler, documentHandler *DocumentHandler, wsHandler *WebSocketHandler) {
	// API version 1
	api := e.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(apiLimiter))

	// Applicant journey routes. The channel gateway authenticates the
	// customer; this service only ever sees hashed identifiers. The
	// list endpoint is the review queue, so it stays protected.
	applications := api.Group("/applications")
	applications.POST("", applicationHandler.StartApplication)
	applications.GET("", applicationHandler.ListApplications, authMiddleware.Authenticate())
	applications.GET("/no/:no", applicationHandler.GetApplicationByNo)
	applications.GET("/:id", applicationHandler.GetApplication)
	applications.POST("/:id/consent", applicationHandler.RecordConsent)
	applications.POST("/:id/basic-info", applicationHandler.SubmitBasicInfo)
	applications.POST("/:id/financial-info", applicationHandler.SubmitFinancialInfo)
	applications.POST("/:id/product", applicationHandler.SelectProduct)
	applications.POST("/:id/review", applicationHandler.ReviewApplication)
	applications.POST("/:id/submit", applicationHandler.SubmitApplication)
	applications.POST("/:id/withdraw", applicationHandler.WithdrawApplication)
	applications.POST("/:id/appeal", applicationHandler.AppealDecision)
	applications.GET("/:id/result", applicationHandler.GetResult)

	// Appeal documents ride the journey surface; deletion is an
	// operations action.
	applications.POST("/:id/documents", documentHandler.UploadDocument)
	applications.GET("/:id/documents", documentHandler.ListDocuments)

	documents := api.Group("/documents")
	documents.GET("/:id/url", documentHandler.GetDocumentURL)
	documents.DELETE("/:id", documentHandler.DeleteDocument, authMiddleware.Authenticate(), middleware.RequireRole(middleware.RoleOfficer))

	// Scoring routes (protected, tighter rate limit)
	scoring := api.Group("/scoring")
	scoring.Use(middleware.RateLimitMiddleware(evaluateLimiter))
	scoring.Use(authMiddleware.Authenticate())
	scoring.POST("/evaluate", scoringHandler.Evaluate)
	scoring.POST("/evaluate/batch", scoringHandler.BatchEvaluate)
	scoring.POST("/applications/:id/rescore", scoringHandler.Rescore)
	scoring.POST("/applications/:id/review", scoringHandler.ReviewDecision, middleware.RequireRole(middleware.RoleOfficer))
	scoring.GET("/applications/:id/history", scoringHandler.GetScoreHistory)

	// Admin routes (protected; writes need the admin role)
	admin := api.Group("/admin")
	admin.Use(authMiddleware.Authenticate())
	adminWrite := middleware.RequireRole(middleware.RoleAdmin)

	admin.GET("/params", adminHandler.ListParams)
	admin.GET("/params/keys", adminHandler.ListParamKeys)
	admin.GET("/params/key/:key", adminHandler.GetParamHistory)
	admin.GET("/params/:id", adminHandler.GetParam)
	admin.POST("/params", adminHandler.CreateParam, adminWrite)
	admin.POST("/params/:id/deactivate", adminHandler.DeactivateParam, adminWrite)

	admin.GET("/models", adminHandler.ListModels)
	admin.GET("/models/champion/:scorecardType", adminHandler.GetChampionModel)
	admin.GET("/models/:id", adminHandler.GetModel)
	admin.POST("/models", adminHandler.RegisterModel, adminWrite)
	admin.POST("/models/:id/validate", adminHandler.ValidateModel, adminWrite)
	admin.POST("/models/:id/promote", adminHandler.PromoteModel, adminWrite)
	admin.POST("/models/:id/retire", adminHandler.RetireModel, adminWrite)

	admin.GET("/eq-grades", adminHandler.ListEQGrades)
	admin.GET("/irgs", adminHandler.ListIRGs)

	// Monitoring routes (protected)
	monitoring := api.Group("/monitoring")
	monitoring.Use(authMiddleware.Authenticate())
	monitoring.GET("/psi-summary", monitoringHandler.PSISummary)
	monitoring.GET("/calibration", monitoringHandler.Calibration)
	monitoring.GET("/vintage", monitoringHandler.Vintage)
	monitoring.GET("/portfolio", monitoringHandler.Portfolio)
	monitoring.GET("/ews", monitoringHandler.ListEWSEvents)
	monitoring.GET("/ews/applicants/:applicantId", monitoringHandler.ListEWSEventsByApplicant)

	// Real-time ops feed; the token is validated during the handshake
	e.GET("/ws", wsHandler.HandleWS)

	// API documentation
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/openapi.json", ServeOpenAPI3Spec)
}
