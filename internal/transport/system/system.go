// Package system serves the aggregate status and worker views.
package system

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domainworker "github.com/alanyang/interview-router/internal/domain/worker"
	portworker "github.com/alanyang/interview-router/internal/port/worker"
	"github.com/alanyang/interview-router/internal/service/dispatcher"
)

func Register(rg *gin.RouterGroup, svc *dispatcher.Service, registry portworker.Registry) {
	rg.GET("/status", getStatus(svc))
	rg.GET("/workers", listWorkers(registry))
	rg.GET("/workers/:id", getWorker(registry))
	rg.PATCH("/workers/:id", updateWorkerStatus(svc, registry))
}

func getStatus(svc *dispatcher.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.GetSystemStatus(c.Request.Context()))
	}
}

func listWorkers(registry portworker.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		workers := registry.List()
		if v := c.Query("status"); v != "" {
			filtered := workers[:0]
			for _, w := range workers {
				if string(w.Status) == v {
					filtered = append(filtered, w)
				}
			}
			workers = filtered
		}
		if workers == nil {
			workers = []domainworker.Worker{}
		}
		c.JSON(http.StatusOK, workers)
	}
}

func getWorker(registry portworker.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := registry.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, w)
	}
}

type updateStatusReq struct {
	Status domainworker.Status `json:"status" binding:"required"`
}

// updateWorkerStatus lets an operator take a worker off rotation or bring it
// back. Load-derived BUSY cannot be set directly.
func updateWorkerStatus(svc *dispatcher.Service, registry portworker.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateStatusReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		w, err := registry.SetStatus(c.Param("id"), req.Status, time.Now())
		switch {
		case errors.Is(err, portworker.ErrWorkerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		case errors.Is(err, portworker.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if w.Status == domainworker.StatusAvailable {
			svc.Wake()
		}
		c.JSON(http.StatusOK, w)
	}
}
