package env

import (
	"math"

	"github.com/pthm-cable/hopper/config"
	"github.com/pthm-cable/hopper/physics"
)

// NumRays is the number of perception ray directions.
const NumRays = 8

const diag = 1 / math.Sqrt2

// RayDirections are the eight perception directions in observation order:
// right, left, down, up, up-right, down-right, up-left, down-left.
var RayDirections = [NumRays]physics.Vec2{
	{X: 1, Y: 0},
	{X: -1, Y: 0},
	{X: 0, Y: -1},
	{X: 0, Y: 1},
	{X: diag, Y: diag},
	{X: diag, Y: -diag},
	{X: -diag, Y: diag},
	{X: -diag, Y: -diag},
}

// Perception produces the ray and grounding portions of the observation.
type Perception struct {
	rays         physics.RayCaster
	rayLength    float64
	obstacleMask uint16
	groundMask   uint16
	probeLen     float64
}

// NewPerception builds a perception front-end over the given ray caster.
func NewPerception(cfg *config.Config, rays physics.RayCaster) *Perception {
	return &Perception{
		rays:         rays,
		rayLength:    cfg.Perception.RayLength,
		obstacleMask: cfg.Derived.ObstacleMask,
		groundMask:   cfg.Derived.GroundMask,
		probeLen:     cfg.Derived.GroundProbeLen,
	}
}

// CastDistance returns the normalized clear distance from origin along dir.
// A miss, a zero-length direction, or anything beyond the ray length reads
// as 1.0.
func (p *Perception) CastDistance(origin, dir physics.Vec2) float64 {
	unit, ok := dir.Normalized()
	if !ok {
		return 1.0
	}
	hit, dist := p.rays.Cast(origin, unit, p.rayLength, p.obstacleMask)
	if !hit {
		return 1.0
	}
	return clampf(dist/p.rayLength, 0, 1)
}

// IsGrounded probes straight down from the bottom-center of the body for a
// support surface within the configured probe length.
func (p *Perception) IsGrounded(body physics.Body) bool {
	pos := body.Position()
	origin := physics.Vec2{X: pos.X, Y: pos.Y - body.HalfExtents().Y}
	hit, _ := p.rays.Cast(origin, physics.Vec2{X: 0, Y: -1}, p.probeLen, p.groundMask)
	return hit
}
