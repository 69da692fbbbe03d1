package system

import (
	"image"
	"sync"
)

// FramePool переиспользует *image.RGBA одинакового размера между кадрами,
// чтобы ресайзы поверхности и копии для энкодера не нагружали GC.
type FramePool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

var globalPool = NewFramePool()

func NewFramePool() *FramePool {
	return &FramePool{pools: make(map[image.Point]*sync.Pool)}
}

// GetFrame returns a w×h frame from the shared pool. Contents are not cleared.
func GetFrame(w, h int) *image.RGBA {
	return globalPool.Get(w, h)
}

// PutFrame returns a frame to the shared pool.
func PutFrame(img *image.RGBA) {
	globalPool.Put(img)
}

func (p *FramePool) Get(w, h int) *image.RGBA {
	key := image.Pt(w, h)
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		// Double check
		pool, exists = p.pools[key]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return image.NewRGBA(image.Rect(0, 0, key.X, key.Y))
				},
			}
			p.pools[key] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.RGBA)
}

func (p *FramePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) {
		return
	}
	key := img.Rect.Size()
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}
