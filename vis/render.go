// Package vis renders environment snapshots to PNG for quick inspection of
// a layout and a rolled-out trajectory.
package vis

import (
	"fmt"

	"github.com/fogleman/gg"

	"github.com/pthm-cable/hopper/physics"
	"github.com/pthm-cable/hopper/telemetry"
)

const (
	scale  = 24.0 // pixels per meter
	margin = 2.0  // meters of padding around the geometry
)

// Scene is everything one frame shows: the captured state plus the agent's
// positions over the rollout that led to it.
type Scene struct {
	Snapshot    *telemetry.Snapshot
	Trail       []physics.Vec2
	AgentAnchor physics.Vec2
	GoalAnchor  physics.Vec2
}

// Render draws the scene and writes it to path as a PNG.
func Render(scene Scene, path string) error {
	snap := scene.Snapshot
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	if len(snap.Surfaces) == 0 {
		return fmt.Errorf("snapshot has no surfaces")
	}

	minX, minY := snap.Surfaces[0].X, snap.DeathHeight
	maxX, maxY := snap.Surfaces[0].X, snap.Surfaces[0].Y
	for _, s := range snap.Surfaces {
		minX = min(minX, s.X-s.HalfW)
		maxX = max(maxX, s.X+s.HalfW)
		minY = min(minY, s.Y-s.HalfH)
		maxY = max(maxY, s.Y+s.HalfH)
	}
	maxY = max(maxY, max(snap.Agent.Y, snap.Goal.Y)+1)
	minX -= margin
	maxX += margin
	minY -= margin
	maxY += margin

	dc := gg.NewContext(int((maxX-minX)*scale), int((maxY-minY)*scale))
	px := func(wx float64) float64 { return (wx - minX) * scale }
	py := func(wy float64) float64 { return (maxY - wy) * scale }

	dc.SetRGB(0.08, 0.09, 0.12)
	dc.Clear()

	// Death line
	dc.SetRGBA(0.8, 0.25, 0.25, 0.7)
	dc.SetLineWidth(1)
	dc.SetDash(6, 4)
	dc.DrawLine(px(minX), py(snap.DeathHeight), px(maxX), py(snap.DeathHeight))
	dc.Stroke()
	dc.SetDash()

	for _, s := range snap.Surfaces {
		switch {
		case s.Flash > 0:
			dc.SetRGB(0.85, 0.72, 0.25)
		case s.Kind == "platform":
			dc.SetRGB(0.45, 0.48, 0.54)
		case s.Kind == "wall":
			dc.SetRGB(0.32, 0.34, 0.38)
		default:
			dc.SetRGB(0.24, 0.26, 0.30)
		}
		dc.DrawRectangle(px(s.X-s.HalfW), py(s.Y+s.HalfH), s.HalfW*2*scale, s.HalfH*2*scale)
		dc.Fill()
	}

	// Authored anchors
	dc.SetLineWidth(1.5)
	dc.SetRGBA(0.4, 0.7, 1.0, 0.8)
	dc.DrawCircle(px(scene.AgentAnchor.X), py(scene.AgentAnchor.Y), 5)
	dc.Stroke()
	dc.SetRGBA(1.0, 0.85, 0.3, 0.8)
	dc.DrawCircle(px(scene.GoalAnchor.X), py(scene.GoalAnchor.Y), 5)
	dc.Stroke()

	// Trail, oldest faintest
	for i, p := range scene.Trail {
		alpha := 0.15 + 0.65*float64(i)/float64(len(scene.Trail))
		dc.SetRGBA(0.35, 0.8, 0.9, alpha)
		dc.DrawCircle(px(p.X), py(p.Y), 2)
		dc.Fill()
	}

	// Goal
	if snap.Goal.Active {
		dc.SetRGB(1.0, 0.82, 0.2)
		dc.DrawCircle(px(snap.Goal.X), py(snap.Goal.Y), 6)
		dc.Fill()
	} else {
		dc.SetRGBA(1.0, 0.82, 0.2, 0.35)
		dc.DrawCircle(px(snap.Goal.X), py(snap.Goal.Y), 6)
		dc.Stroke()
	}

	// Agent box with a velocity tick
	a := snap.Agent
	dc.SetRGB(0.92, 0.93, 0.95)
	dc.DrawRectangle(px(a.X-a.HalfW), py(a.Y+a.HalfH), a.HalfW*2*scale, a.HalfH*2*scale)
	dc.Fill()
	dc.SetRGBA(0.35, 0.8, 0.9, 0.9)
	dc.SetLineWidth(2)
	dc.DrawLine(px(a.X), py(a.Y), px(a.X+a.VelX*0.15), py(a.Y+a.VelY*0.15))
	dc.Stroke()

	return dc.SavePNG(path)
}
