package level

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/hopper/config"
)

const (
	groundThickness = 1.0
	wallThickness   = 0.4
	wallExtraHeight = 4.0

	// Authored anchor heights above the ground surface.
	agentAnchorY = 1.0
	goalAnchorY  = 1.2

	// Ground cells this close to an anchor are never carved into a pit.
	pitKeepout = 1.5
)

// Generate authors a level from the config and seed: a ground strip with
// noise-carved pits, bounding walls, floating platforms spread between the two
// anchors, and the goal at its anchor. Deterministic for a given seed.
func Generate(cfg *config.Config, seed int64) *Level {
	l := newLevel(cfg)
	noise := opensimplex.NewNormalized(seed)

	width := cfg.Level.Width
	margin := cfg.Level.AnchorMargin

	l.agentAnchor.X = margin
	l.agentAnchor.Y = agentAnchorY
	l.goalAnchor.X = width - margin
	l.goalAnchor.Y = goalAnchorY

	l.generateGround(noise)
	l.generateWalls()
	l.generatePlatforms(noise)

	// The goal starts at its authored anchor, visible.
	pos := Position{X: l.goalAnchor.X, Y: l.goalAnchor.Y}
	point := GoalPoint{Active: true}
	tint := Tint{}
	l.goal = l.goalMapper.NewEntity(&pos, &point, &tint)

	return l
}

// generateGround walks the width in unit cells, carving a pit wherever the
// layout noise exceeds the threshold, then merges solid runs into segments.
func (l *Level) generateGround(noise opensimplex.Noise) {
	cfg := l.cfg.Level
	cells := int(cfg.Width)

	solid := make([]bool, cells)
	for i := range solid {
		cx := float64(i) + 0.5
		n := octaveNoise(noise, cx, 77.7, cfg.NoiseOctaves, cfg.NoiseScale*4, 0.5)
		solid[i] = n <= cfg.PitThreshold || l.nearAnchor(cx)
	}

	start := -1
	for i := 0; i <= cells; i++ {
		if i < cells && solid[i] {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runW := float64(i - start)
			centerX := float64(start) + runW/2
			l.addSurface(centerX, -groundThickness/2, runW/2, groundThickness/2, SurfaceGround)
			start = -1
		}
	}
}

func (l *Level) nearAnchor(x float64) bool {
	if x > l.agentAnchor.X-pitKeepout && x < l.agentAnchor.X+pitKeepout {
		return true
	}
	return x > l.goalAnchor.X-pitKeepout && x < l.goalAnchor.X+pitKeepout
}

func (l *Level) generateWalls() {
	cfg := l.cfg.Level
	wallH := cfg.MaxHeight + wallExtraHeight
	half := wallThickness / 2
	l.addSurface(-half, wallH/2-groundThickness, half, wallH/2+groundThickness/2, SurfaceWall)
	l.addSurface(cfg.Width+half, wallH/2-groundThickness, half, wallH/2+groundThickness/2, SurfaceWall)
}

// generatePlatforms spreads the floating platforms between the anchors, with
// noise jittering each slot's position and width.
func (l *Level) generatePlatforms(noise opensimplex.Noise) {
	cfg := l.cfg.Level
	count := cfg.PlatformCount
	if count <= 0 {
		return
	}

	span := cfg.Width - 2*cfg.AnchorMargin
	spacing := span / float64(count)
	for i := 0; i < count; i++ {
		t := (float64(i) + 0.5) / float64(count)
		sx := t * cfg.Width

		nx := octaveNoise(noise, sx, 13.3, cfg.NoiseOctaves, cfg.NoiseScale, 0.5)
		ny := octaveNoise(noise, sx, 29.1, cfg.NoiseOctaves, cfg.NoiseScale, 0.5)
		nw := octaveNoise(noise, sx, 51.9, cfg.NoiseOctaves, cfg.NoiseScale, 0.5)

		x := cfg.AnchorMargin + span*t + (nx-0.5)*spacing*0.8
		y := 1.2 + ny*(cfg.MaxHeight-1.2)
		w := cfg.PlatformMinWidth + nw*(cfg.PlatformMaxWidth-cfg.PlatformMinWidth)

		x = clamp(x, w/2, cfg.Width-w/2)
		l.addSurface(x, y, w/2, cfg.PlatformThickness/2, SurfacePlatform)
	}
}

// octaveNoise sums FBM octaves of normalized simplex noise, keeping the
// result in [0, 1].
func octaveNoise(n opensimplex.Noise, x, y float64, octaves int, scale, gain float64) float64 {
	total := 0.0
	amp := 1.0
	norm := 0.0
	freq := scale
	for i := 0; i < octaves; i++ {
		total += n.Eval2(x*freq, y*freq) * amp
		norm += amp
		amp *= gain
		freq *= 2
	}
	return total / norm
}
