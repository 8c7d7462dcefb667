// Package camera maps world coordinates onto a terminal cell viewport.
package camera

import "math"

// Camera projects a window of the world onto a grid of terminal cells.
// Screen rows grow downward while world Y grows upward, and a cell is
// roughly twice as tall as it is wide, so the vertical scale carries a
// cell aspect correction.
type Camera struct {
	// View center in world coordinates.
	X, Y float64

	// Zoom is horizontal cells per world meter.
	Zoom float64

	// CellAspect is the width to height ratio of one terminal cell.
	CellAspect float64

	// Viewport size in cells.
	Cols, Rows int

	// World bounds the view is clamped against.
	MinX, MaxX, MinY, MaxY float64

	// Zoom constraints. MinZoom is the fitted zoom, so the view never
	// shows beyond the world bounds plus slack on one axis.
	MinZoom, MaxZoom float64
}

// New creates a camera fitted to the given world bounds.
func New(cols, rows int, minX, maxX, minY, maxY float64) *Camera {
	c := &Camera{
		CellAspect: 0.5,
		Cols:       cols,
		Rows:       rows,
		MinX:       minX,
		MaxX:       maxX,
		MinY:       minY,
		MaxY:       maxY,
		MaxZoom:    8,
	}
	c.Reset()
	return c
}

// fitZoom is the largest zoom that still shows the whole world.
func (c *Camera) fitZoom() float64 {
	zoomX := float64(c.Cols) / (c.MaxX - c.MinX)
	zoomY := float64(c.Rows) / (c.CellAspect * (c.MaxY - c.MinY))
	return min(zoomX, zoomY)
}

// Reset fits the whole world into the viewport.
func (c *Camera) Reset() {
	c.Zoom = c.fitZoom()
	c.MinZoom = c.Zoom
	c.X = (c.MinX + c.MaxX) / 2
	c.Y = (c.MinY + c.MaxY) / 2
}

// Resize updates the viewport dimensions, keeping the zoom factor relative
// to the fitted zoom so a zoomed-in view survives a terminal resize.
func (c *Camera) Resize(cols, rows int) {
	if cols == c.Cols && rows == c.Rows {
		return
	}
	factor := 1.0
	if c.MinZoom > 0 {
		factor = c.Zoom / c.MinZoom
	}
	c.Cols = cols
	c.Rows = rows
	c.MinZoom = c.fitZoom()
	c.Zoom = c.MinZoom * factor
	c.clampZoom()
	c.clampCenter()
}

// Follow centers the view on a world position, clamped to the bounds.
func (c *Camera) Follow(wx, wy float64) {
	c.X = wx
	c.Y = wy
	c.clampCenter()
}

// Pan moves the view center by a world-space delta.
func (c *Camera) Pan(dx, dy float64) {
	c.X += dx
	c.Y += dy
	c.clampCenter()
}

// ZoomBy multiplies the zoom by the given factor, clamped to the limits.
func (c *Camera) ZoomBy(factor float64) {
	c.Zoom *= factor
	c.clampZoom()
	c.clampCenter()
}

// Fitted reports whether the view is zoomed all the way out.
func (c *Camera) Fitted() bool {
	return c.Zoom <= c.MinZoom
}

// ToCell converts world coordinates to cell coordinates. The result may lie
// outside the viewport; check Contains before drawing.
func (c *Camera) ToCell(wx, wy float64) (cx, cy int) {
	cx = c.Cols/2 + int(math.Round((wx-c.X)*c.Zoom))
	cy = c.Rows/2 - int(math.Round((wy-c.Y)*c.Zoom*c.CellAspect))
	return cx, cy
}

// ToWorld converts cell coordinates back to the world position at the cell
// center.
func (c *Camera) ToWorld(cx, cy int) (wx, wy float64) {
	wx = c.X + float64(cx-c.Cols/2)/c.Zoom
	wy = c.Y - float64(cy-c.Rows/2)/(c.Zoom*c.CellAspect)
	return wx, wy
}

// Contains reports whether a cell lies inside the viewport.
func (c *Camera) Contains(cx, cy int) bool {
	return cx >= 0 && cx < c.Cols && cy >= 0 && cy < c.Rows
}

func (c *Camera) clampZoom() {
	if c.Zoom < c.MinZoom {
		c.Zoom = c.MinZoom
	}
	if c.Zoom > c.MaxZoom {
		c.Zoom = c.MaxZoom
	}
}

// clampCenter keeps the visible window inside the world bounds. An axis
// whose world extent is smaller than the window is centered instead.
func (c *Camera) clampCenter() {
	halfW := float64(c.Cols) / (2 * c.Zoom)
	halfH := float64(c.Rows) / (2 * c.Zoom * c.CellAspect)

	c.X = clampAxis(c.X, c.MinX, c.MaxX, halfW)
	c.Y = clampAxis(c.Y, c.MinY, c.MaxY, halfH)
}

func clampAxis(v, lo, hi, half float64) float64 {
	if hi-lo <= 2*half {
		return (lo + hi) / 2
	}
	if v < lo+half {
		return lo + half
	}
	if v > hi-half {
		return hi - half
	}
	return v
}
