// Package profile describes the load shape applied to a k6 script: up to
// three stages (ramp-up, steady, ramp-down) of virtual users.
package profile

import (
	"time"
)

const (
	// DefaultVUs is used by the fallback profile when no steady VU count is given.
	DefaultVUs = 10

	// DefaultDuration is used by the fallback profile when no steady duration is given.
	DefaultDuration = "30s"
)

// LoadProfile is the root description of a test's load.
//
// Example YAML:
//
//	rampUp:
//	  vus: 10
//	  duration: 30s
//	steady:
//	  vus: 10
//	  duration: 2m
//	rampDown:
//	  vus: 0
//	  duration: 30s
type LoadProfile struct {
	// RampUp brings load up to its target
	RampUp Stage `json:"rampUp,omitempty" yaml:"rampUp,omitempty"`

	// Steady holds load at its target
	Steady Stage `json:"steady,omitempty" yaml:"steady,omitempty"`

	// RampDown winds load down; a target of 0 is allowed
	RampDown Stage `json:"rampDown,omitempty" yaml:"rampDown,omitempty"`
}

// Stage is one optional segment of a LoadProfile.
type Stage struct {
	// VUs is the target virtual user count; nil means not set
	VUs *int `json:"vus,omitempty" yaml:"vus,omitempty"`

	// Duration of the stage (e.g., "30s", "2m"), passed to k6 verbatim
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Target is an active stage in the form k6 expects in its stages list.
type Target struct {
	Duration string
	Target   int
}

// VUs returns a pointer to n, for building stages in code.
func VUs(n int) *int {
	return &n
}

// IsZero reports whether neither field of the stage is set.
func (s Stage) IsZero() bool {
	return s.VUs == nil && s.Duration == ""
}

// hasDuration reports whether the stage carries a usable, non-zero duration.
// Durations that cannot be parsed count as set; Validate reports them.
func (s Stage) hasDuration() bool {
	if s.Duration == "" {
		return false
	}
	d, err := ParseDurationString(s.Duration)
	if err != nil {
		return true
	}
	return d != 0
}

// activeAbove reports whether the stage is active given the minimum VU count
// it needs.
func (s Stage) activeAbove(minVUs int) bool {
	return s.VUs != nil && *s.VUs >= minVUs && s.hasDuration()
}

// ActiveStages returns the active stages in ramp-up, steady, ramp-down order.
//
// Ramp-up and steady need a positive VU count. Ramp-down may target zero
// VUs and still be active.
func (p LoadProfile) ActiveStages() []Target {
	var targets []Target

	if p.RampUp.activeAbove(1) {
		targets = append(targets, Target{Duration: p.RampUp.Duration, Target: *p.RampUp.VUs})
	}
	if p.Steady.activeAbove(1) {
		targets = append(targets, Target{Duration: p.Steady.Duration, Target: *p.Steady.VUs})
	}
	if p.RampDown.activeAbove(0) {
		targets = append(targets, Target{Duration: p.RampDown.Duration, Target: *p.RampDown.VUs})
	}

	return targets
}

// SteadyOnly reports whether steady is the only active stage.
func (p LoadProfile) SteadyOnly() bool {
	return p.Steady.activeAbove(1) && !p.RampUp.activeAbove(1) && !p.RampDown.activeAbove(0)
}

// Fallback returns the flat VU count and duration used when no stage is active.
func (p LoadProfile) Fallback() (int, string) {
	vus := DefaultVUs
	if p.Steady.VUs != nil && *p.Steady.VUs > 0 {
		vus = *p.Steady.VUs
	}

	duration := DefaultDuration
	if p.Steady.hasDuration() {
		duration = p.Steady.Duration
	}

	return vus, duration
}

// TotalDuration sums the durations of the active stages, or returns the
// fallback duration when none is active.
func (p LoadProfile) TotalDuration() time.Duration {
	stages := p.ActiveStages()
	if len(stages) == 0 {
		_, d := p.Fallback()
		total, _ := ParseDurationString(d)
		return total
	}

	var total time.Duration
	for _, s := range stages {
		if d, err := ParseDurationString(s.Duration); err == nil {
			total += d
		}
	}
	return total
}

// MaxVUs returns the highest VU target the profile will reach.
func (p LoadProfile) MaxVUs() int {
	stages := p.ActiveStages()
	if len(stages) == 0 {
		vus, _ := p.Fallback()
		return vus
	}

	maxVUs := 0
	for _, s := range stages {
		if s.Target > maxVUs {
			maxVUs = s.Target
		}
	}
	return maxVUs
}
