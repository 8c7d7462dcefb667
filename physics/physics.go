// Package physics defines the narrow contract the agent controller needs from
// a rigid-body engine (position/velocity access, impulse application, filtered
// ray casts) together with a Box2D-backed implementation of that contract.
package physics

import (
	"fmt"
	"strings"
)

// Collision categories. Every fixture carries exactly one category bit; ray
// casts filter on a mask of categories.
const (
	CategoryGround uint16 = 1 << iota
	CategoryPlatform
	CategoryWall
	CategoryAgent
)

// MaskAll matches every category.
const MaskAll uint16 = 0xFFFF

var categoryNames = map[string]uint16{
	"ground":   CategoryGround,
	"platform": CategoryPlatform,
	"wall":     CategoryWall,
	"agent":    CategoryAgent,
}

// MaskFromNames resolves a list of layer names to a collision mask.
// Unknown names are configuration defects and reported as errors.
func MaskFromNames(names []string) (uint16, error) {
	if len(names) == 0 {
		return 0, fmt.Errorf("empty layer list")
	}
	var mask uint16
	for _, name := range names {
		bit, ok := categoryNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown layer %q", name)
		}
		mask |= bit
	}
	return mask, nil
}

// Body is the mutable physical state of one dynamic body. The engine owns the
// representation; the controller only reads and writes through this handle.
type Body interface {
	Position() Vec2
	Velocity() Vec2
	SetVelocity(Vec2)
	SetPosition(Vec2)
	ApplyImpulse(Vec2)
	HalfExtents() Vec2
}

// RayCaster answers closest-hit ray queries against world geometry.
type RayCaster interface {
	// Cast casts from origin along the unit direction dir, up to maxLen,
	// considering only fixtures whose category is in mask. It reports whether
	// anything was hit and the distance to the closest hit.
	Cast(origin, dir Vec2, maxLen float64, mask uint16) (bool, float64)
}

// Stepper advances the simulation by one fixed tick.
type Stepper interface {
	Step(dt float64)
}

// Rect is an axis-aligned box used to author static geometry.
type Rect struct {
	Center   Vec2
	Half     Vec2
	Category uint16
}
