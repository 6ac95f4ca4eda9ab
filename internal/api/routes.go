package api

import (
	"alcyxob/equipment-app/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Progress  service.ProgressService
	Equipment service.EquipmentService
	Loans     service.LoanService
	Oracle    *service.CompetencyOracle
}

// SetupRoutes registers every endpoint. metricsHandler may be nil.
func SetupRoutes(router *gin.Engine, jwtSecret string, services Services, metricsHandler http.Handler) {
	progressHandler := NewProgressHandler(services.Progress)
	equipmentHandler := NewEquipmentHandler(services.Equipment, services.Oracle)
	loanHandler := NewLoanHandler(services.Loans)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	apiV1 := router.Group("/api/v1")
	apiV1.Use(OperatorMiddleware(jwtSecret))
	{
		// --- Progress ledger ---
		apiV1.GET("/people/:id/progress", progressHandler.GetProgress)
		apiV1.PUT("/people/:id/progress", progressHandler.UpdateProgress)
		apiV1.POST("/people/:id/progress/reset", progressHandler.ResetProgress)
		apiV1.POST("/progress/competency", progressHandler.MarkCompetent)

		// --- Equipment state machine ---
		equipmentGroup := apiV1.Group("/equipment")
		{
			equipmentGroup.GET("", equipmentHandler.ListEquipment)
			equipmentGroup.GET("/:id", equipmentHandler.GetEquipment)
			equipmentGroup.PUT("/:id/lesson", equipmentHandler.SetLinkedLesson)
			equipmentGroup.GET("/:id/competency", equipmentHandler.EvaluateCompetency)
			equipmentGroup.POST("/:id/lockout", equipmentHandler.LockOut)
			equipmentGroup.POST("/:id/unlock", equipmentHandler.Unlock)
			equipmentGroup.POST("/:id/return", equipmentHandler.ReturnEquipment)
			equipmentGroup.GET("/:id/audit", equipmentHandler.AuditTrail)

			// Lending only goes through the loan workflow.
			equipmentGroup.POST("/:id/loan", loanHandler.RequestLoan)
			equipmentGroup.POST("/:id/loan/override", loanHandler.ConfirmLoanOverride)
		}
	}
}
