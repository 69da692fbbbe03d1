package api

import (
	"context"
	"image"

	"github.com/gin-gonic/gin"
	"github.com/ivlev/reel2video/internal/capture"
	"github.com/ivlev/reel2video/internal/engine"
	"github.com/ivlev/reel2video/internal/timeline"
)

// Studio is the set of operations the HTTP surface drives
type Studio interface {
	LoadPlan(plan *timeline.Plan) error
	Play() error
	Stop()
	SetViewport(width, height int) error
	RecordFullPlayback(ctx context.Context) (*capture.Artifact, error)
	Snapshot() *image.RGBA
	Status() engine.Status
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(s Studio) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	RegisterHealthRoutes(r)
	RegisterPlanRoutes(r, s)
	RegisterPlaybackRoutes(r, s)
	RegisterExportRoutes(r, s)
	return r
}
