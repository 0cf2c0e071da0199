// Package featuregate decides how a guarded view renders for the current
// gamification state.
package featuregate

import (
	"fmt"
	"time"

	"finquest/internal/engine"
)

type Mode string

const (
	ModeFull    Mode = "full"
	ModePreview Mode = "preview"
	ModeBlock   Mode = "block"
	ModeLimited Mode = "limited"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "", ModeFull:
		return ModeFull, nil
	case ModePreview, ModeBlock, ModeLimited:
		return m, nil
	default:
		return "", fmt.Errorf("unknown gate mode %q (want full, preview, block or limited)", s)
	}
}

type Render string

const (
	RenderContent  Render = "content"
	RenderFallback Render = "fallback"
	RenderNothing  Render = "nothing"
	RenderPreview  Render = "preview"
)

type Input struct {
	Access      engine.FeatureAccessResult
	Definition  engine.FeatureGateDefinition
	Mode        Mode
	HasFallback bool
	CurrentXP   int
	TargetXP    int
}

// Preview is the locked-state card.
type Preview struct {
	Key           string
	Name          string
	Description   string
	Icon          string
	RequiredLevel int
	XPNeeded      int
	ProgressPct   float64
	TrialActive   bool
	TrialEndsAt   *time.Time
	Benefits      []string
}

// Overlay is the non-blocking banner shown over content in limited mode.
type Overlay struct {
	RequiredLevel int
	Message       string
}

type Decision struct {
	Render  Render
	Preview *Preview
	Overlay *Overlay
}

func Decide(in Input) Decision {
	if in.Access.Unlocked {
		return Decision{Render: RenderContent}
	}
	if in.HasFallback {
		return Decision{Render: RenderFallback}
	}
	switch in.Mode {
	case ModeBlock:
		return Decision{Render: RenderNothing}
	case ModeLimited:
		return Decision{
			Render: RenderContent,
			Overlay: &Overlay{
				RequiredLevel: in.Access.RequiredLevel,
				Message:       fmt.Sprintf("%s unlocks fully at level %d", displayName(in), in.Access.RequiredLevel),
			},
		}
	default:
		return Decision{
			Render: RenderPreview,
			Preview: &Preview{
				Key:           in.Access.Key,
				Name:          displayName(in),
				Description:   in.Definition.Description,
				Icon:          in.Definition.Icon,
				RequiredLevel: in.Access.RequiredLevel,
				XPNeeded:      in.Access.XPNeeded,
				ProgressPct:   ProgressPct(in.CurrentXP, in.TargetXP),
				TrialActive:   in.Access.TrialActive,
				TrialEndsAt:   in.Access.TrialEndsAt,
				Benefits:      append([]string(nil), in.Definition.Benefits...),
			},
		}
	}
}

// ProgressPct is current/target as a percentage capped at 100.
func ProgressPct(current, target int) float64 {
	if target <= 0 {
		return 100
	}
	if current <= 0 {
		return 0
	}
	return min(100, float64(current)/float64(target)*100)
}

func displayName(in Input) string {
	if in.Definition.Name != "" {
		return in.Definition.Name
	}
	return in.Access.Key
}

// Source is the engine surface a gate reads. *engine.Service satisfies it.
type Source interface {
	GetFeatureAccess(key string) engine.FeatureAccessResult
	Feature(key string) (engine.FeatureGateDefinition, bool)
	Levels() *engine.LevelTable
	Snapshot() *engine.State
}

// For builds the gate input for key from live engine state.
func For(src Source, key string, mode Mode, hasFallback bool) Input {
	access := src.GetFeatureAccess(key)
	def, _ := src.Feature(key)
	target := def.XPThreshold
	if access.RequiredLevel > 0 {
		target = src.Levels().MinXP(access.RequiredLevel)
	}
	return Input{
		Access:      access,
		Definition:  def,
		Mode:        mode,
		HasFallback: hasFallback,
		CurrentXP:   src.Snapshot().TotalXP(),
		TargetXP:    target,
	}
}
