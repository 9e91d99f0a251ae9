package assignment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/interview-router/internal/service/dispatcher"
)

func Register(rg *gin.RouterGroup, svc *dispatcher.Service) {
	rg.GET("/:id", getAssignment(svc))
}

func getAssignment(svc *dispatcher.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		details, err := svc.GetAssignmentDetails(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, details)
	}
}
