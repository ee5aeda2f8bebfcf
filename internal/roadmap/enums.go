package roadmap

import (
	"fmt"
	"strings"
)

// Stage is the lifecycle stage of a committed feature.
type Stage string

const (
	// StagePlanning is the initial stage of every feature.
	StagePlanning Stage = "planning"

	// StageDesign indicates design work is underway.
	StageDesign Stage = "design"

	// StageDevelopment indicates the feature is being built.
	StageDevelopment Stage = "development"

	// StageTesting indicates the feature is in QA or running as an experiment.
	StageTesting Stage = "testing"

	// StageLaunch indicates the feature is shipping or shipped.
	StageLaunch Stage = "launch"
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{StagePlanning, StageDesign, StageDevelopment, StageTesting, StageLaunch}

// String returns the string representation of the Stage.
func (s Stage) String() string {
	return string(s)
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, v := range Stages {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStage parses a stage name case-insensitively.
func ParseStage(s string) (Stage, error) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown stage %q", s)
	}
	return st, nil
}

// Priority ranks features. High and critical experiments run a third arm.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// String returns the string representation of the Priority.
func (p Priority) String() string {
	return string(p)
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// Elevated reports whether p is high or critical.
func (p Priority) Elevated() bool {
	return p == PriorityHigh || p == PriorityCritical
}

// ParsePriority parses a priority name case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// Theme is the growth area an idea targets.
type Theme string

const (
	ThemeActivation   Theme = "activation"
	ThemeGrowth       Theme = "growth"
	ThemeRetention    Theme = "retention"
	ThemeMonetization Theme = "monetization"
)

// Themes lists every theme.
var Themes = []Theme{ThemeActivation, ThemeGrowth, ThemeRetention, ThemeMonetization}

// String returns the string representation of the Theme.
func (t Theme) String() string {
	return string(t)
}

// Valid reports whether t is a known theme. The empty theme is valid and
// means "unthemed".
func (t Theme) Valid() bool {
	if t == "" {
		return true
	}
	for _, v := range Themes {
		if t == v {
			return true
		}
	}
	return false
}

// Impact is the expected impact of an idea. It shares its scale with
// Priority.
type Impact string

const (
	ImpactLow      Impact = "low"
	ImpactMedium   Impact = "medium"
	ImpactHigh     Impact = "high"
	ImpactCritical Impact = "critical"
)

// String returns the string representation of the Impact.
func (i Impact) String() string {
	return string(i)
}

// Valid reports whether i is a known impact. The empty impact is valid.
func (i Impact) Valid() bool {
	switch i {
	case "", ImpactLow, ImpactMedium, ImpactHigh, ImpactCritical:
		return true
	}
	return false
}

// Priority maps an idea's impact onto the feature priority scale used when
// the idea is promoted. Unset impact becomes medium.
func (i Impact) Priority() Priority {
	if i == "" {
		return PriorityMedium
	}
	return Priority(i)
}
