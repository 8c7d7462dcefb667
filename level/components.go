package level

import "github.com/pthm-cable/hopper/physics"

// Position is an entity's world position. Y is up.
type Position struct {
	X, Y float64
}

// Extent is an entity's half size.
type Extent struct {
	HalfW, HalfH float64
}

// SurfaceKind classifies static geometry.
type SurfaceKind uint8

const (
	SurfaceGround SurfaceKind = iota
	SurfacePlatform
	SurfaceWall
)

func (k SurfaceKind) String() string {
	switch k {
	case SurfacePlatform:
		return "platform"
	case SurfaceWall:
		return "wall"
	default:
		return "ground"
	}
}

// Category maps a surface kind to its collision category.
func (k SurfaceKind) Category() uint16 {
	switch k {
	case SurfacePlatform:
		return physics.CategoryPlatform
	case SurfaceWall:
		return physics.CategoryWall
	default:
		return physics.CategoryGround
	}
}

// Surface marks static geometry with its collision kind.
type Surface struct {
	Kind SurfaceKind
}

// Tint is cosmetic color state. Flash counts down the celebration ticks
// started by a goal capture.
type Tint struct {
	Flash int
}

// GoalPoint is the single goal target's gameplay state.
type GoalPoint struct {
	Active bool
}
