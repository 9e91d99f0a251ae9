package query

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainquery "github.com/alanyang/interview-router/internal/domain/query"
	"github.com/alanyang/interview-router/internal/service/dispatcher"
	"github.com/alanyang/interview-router/internal/transport/ratelimit"
)

func Register(rg *gin.RouterGroup, svc *dispatcher.Service, limiter *ratelimit.PerCustomer) {
	rg.POST("", submitQuery(svc, limiter))
	rg.GET("/:id", getQuery(svc))
}

type submitQueryReq struct {
	CustomerID       string               `json:"customer_id" binding:"required"`
	Text             string               `json:"query_text" binding:"required"`
	Priority         domainquery.Priority `json:"priority"`
	ExpectedDuration int                  `json:"expected_duration"`
	Category         string               `json:"category"`
	Metadata         map[string]any       `json:"metadata"`
}

func submitQuery(svc *dispatcher.Service, limiter *ratelimit.PerCustomer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitQueryReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !limiter.Allow(req.CustomerID) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "submission rate exceeded"})
			return
		}

		id, err := svc.Submit(c.Request.Context(), dispatcher.SubmitRequest{
			CustomerID:       req.CustomerID,
			Text:             req.Text,
			Priority:         req.Priority,
			ExpectedDuration: req.ExpectedDuration,
			Category:         req.Category,
			Metadata:         req.Metadata,
		})
		if err != nil {
			if errors.Is(err, dispatcher.ErrInvalidQuery) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"query_id": id})
	}
}

func getQuery(svc *dispatcher.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.GetQueryStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, st)
	}
}
