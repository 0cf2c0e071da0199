package featuregate

import (
	"fmt"
	"time"

	"finquest/internal/engine"
)

type IndicatorState string

const (
	IndicatorUnlocked IndicatorState = "unlocked"
	IndicatorTrial    IndicatorState = "trial"
	IndicatorLocked   IndicatorState = "locked"
)

// Indicator is the compact badge shown next to a feature name.
type Indicator struct {
	State IndicatorState
	Icon  string
	Label string
}

func NewIndicator(access engine.FeatureAccessResult, def engine.FeatureGateDefinition, now time.Time) Indicator {
	name := def.Name
	if name == "" {
		name = access.Key
	}
	switch {
	case access.TrialActive:
		label := name + " (trial)"
		if access.TrialEndsAt != nil {
			if left := access.TrialEndsAt.Sub(now); left > 0 {
				label = fmt.Sprintf("%s (trial, %dd left)", name, int(left.Hours()/24)+1)
			}
		}
		return Indicator{State: IndicatorTrial, Icon: "⏳", Label: label}
	case access.Unlocked:
		return Indicator{State: IndicatorUnlocked, Icon: "🔓", Label: name}
	default:
		label := fmt.Sprintf("%s (level %d", name, access.RequiredLevel)
		if access.XPNeeded > 0 {
			label += fmt.Sprintf(", %d XP to go", access.XPNeeded)
		}
		return Indicator{State: IndicatorLocked, Icon: "🔒", Label: label + ")"}
	}
}

func (i Indicator) String() string { return i.Icon + " " + i.Label }
