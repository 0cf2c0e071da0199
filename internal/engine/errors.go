package engine

import "fmt"

// GateError indicates a feature is locked behind a required level.
// Commands return it so the CLI can show the requirement.
type GateError struct {
	Feature       string
	RequiredLevel int
	CurrentLevel  int
	XPNeeded      int
}

func (e GateError) Error() string {
	if e.RequiredLevel <= 0 {
		return fmt.Sprintf("feature '%s' is locked", e.Feature)
	}
	if e.XPNeeded > 0 {
		return fmt.Sprintf("feature '%s' unlocks at level %d (%d XP to go)", e.Feature, e.RequiredLevel, e.XPNeeded)
	}
	return fmt.Sprintf("feature '%s' unlocks at level %d", e.Feature, e.RequiredLevel)
}
