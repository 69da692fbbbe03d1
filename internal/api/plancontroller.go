package api

import (
	"errors"
	"image/png"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ivlev/reel2video/internal/engine"
	"github.com/ivlev/reel2video/internal/timeline"
)

// RegisterPlanRoutes registers plan and preview state routes.
func RegisterPlanRoutes(r *gin.Engine, s Studio) {
	r.PUT("/api/plan", func(c *gin.Context) { handlePutPlan(c, s) })
	r.GET("/api/status", func(c *gin.Context) { c.JSON(http.StatusOK, s.Status()) })
	r.GET("/api/frame", func(c *gin.Context) { handleFrame(c, s) })
}

// handlePutPlan accepts a plan as JSON, or as YAML when the content type says so.
func handlePutPlan(c *gin.Context, s Studio) {
	var plan *timeline.Plan
	if strings.Contains(c.ContentType(), "yaml") {
		data, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if plan, err = timeline.DecodePlan(data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		plan = &timeline.Plan{}
		if err := c.ShouldBindJSON(plan); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := s.LoadPlan(plan); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.Status())
}

func handleFrame(c *gin.Context, s Studio) {
	img := s.Snapshot()
	if img == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no frame on the surface"})
		return
	}
	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := png.Encode(c.Writer, img); err != nil {
		c.Error(err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, timeline.ErrInvalidBeat), errors.Is(err, engine.ErrInvalidViewport):
		return http.StatusBadRequest
	case errors.Is(err, timeline.ErrNoPlanLoaded), errors.Is(err, engine.ErrCaptureInProgress):
		return http.StatusConflict
	case errors.Is(err, engine.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
