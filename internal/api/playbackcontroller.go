package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ivlev/reel2video/internal/capture"
)

type viewportRequest struct {
	Width  int `json:"width" binding:"required"`
	Height int `json:"height" binding:"required"`
}

// RegisterPlaybackRoutes registers preview control routes.
func RegisterPlaybackRoutes(r *gin.Engine, s Studio) {
	r.POST("/api/play", func(c *gin.Context) {
		if err := s.Play(); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s.Status())
	})
	r.POST("/api/stop", func(c *gin.Context) {
		s.Stop()
		c.JSON(http.StatusOK, s.Status())
	})
	r.PUT("/api/viewport", func(c *gin.Context) {
		var req viewportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.SetViewport(req.Width, req.Height); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s.Status())
	})
}

// RegisterExportRoutes registers the full-resolution capture route.
func RegisterExportRoutes(r *gin.Engine, s Studio) {
	r.POST("/api/export", func(c *gin.Context) { handleExport(c, s) })
}

// handleExport blocks until the capture resolves and streams the video back.
// Closing the request cancels the capture.
func handleExport(c *gin.Context, s Studio) {
	art, err := s.RecordFullPlayback(c.Request.Context())
	if err != nil {
		log.Printf("[!] Экспорт не выполнен: %v", err)
		c.JSON(exportStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Capture-ID", art.ID.String())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=reel_%s.mp4", art.ID))
	c.Data(http.StatusOK, art.MediaType, art.Data)
}

func exportStatus(err error) int {
	switch {
	case errors.Is(err, capture.ErrCaptureCancelled), errors.Is(err, capture.ErrCaptureInProgress):
		return http.StatusConflict
	case errors.Is(err, capture.ErrEncoderFailure):
		return http.StatusBadGateway
	}
	return statusFor(err)
}
