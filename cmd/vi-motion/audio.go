package main

import (
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const (
	toneDuration = 50 * time.Millisecond
	toneGap      = 40 * time.Millisecond
	wallTone     = 440
	entityTone   = 880
)

// tone plays short sine blips on impact
type tone struct {
	enabled bool
	muted   bool
	rate    beep.SampleRate
	last    time.Time
}

func newTone() (*tone, error) {
	t := &tone{rate: beep.SampleRate(44100)}
	if err := speaker.Init(t.rate, t.rate.N(time.Second/10)); err != nil {
		// Non-fatal, the demo runs silent
		return t, err
	}
	t.enabled = true
	return t, nil
}

// hit plays freq unless muted or a tone started less than toneGap ago
func (t *tone) hit(freq float64) {
	if !t.enabled || t.muted {
		return
	}
	now := time.Now()
	if now.Sub(t.last) < toneGap {
		return
	}
	t.last = now

	sine, err := generators.SineTone(t.rate, freq)
	if err != nil {
		return
	}
	speaker.Play(beep.Take(t.rate.N(toneDuration), sine))
}

func (t *tone) toggle() { t.muted = !t.muted }

func (t *tone) close() {
	if t.enabled {
		speaker.Close()
	}
}
