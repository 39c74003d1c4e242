package physics

import (
	"github.com/lixenwraith/vi-motion/core"
	"github.com/lixenwraith/vi-motion/vmath"
)

// Impact describes one entity striking another during a tick
// For the mirrored notification on the struck entity, Moving and Struck are swapped
// and Angle is reversed
type Impact struct {
	Moving     *core.Entity
	Struck     *core.Entity
	Angle      vmath.Angle
	Type       HitType
	Prediction HitPrediction
}

// Mirror returns the impact as seen by the struck entity
func (i Impact) Mirror() Impact {
	return Impact{
		Moving:     i.Struck,
		Struck:     i.Moving,
		Angle:      i.Angle.Opposite(),
		Type:       i.Type,
		Prediction: i.Prediction,
	}
}
