package engine

import "time"

type FeatureAccessResult struct {
	Key           string
	Unlocked      bool
	RequiredLevel int
	UserLevel     int
	XPNeeded      int
	TrialActive   bool
	TrialEndsAt   *time.Time
	// FromBackend is set when the backend reported on this feature.
	FromBackend bool
}

// featureAccess resolves access for key. Backend data about a key wins over
// the local tables; keys unknown to both unlock.
func featureAccess(st *State, levels *LevelTable, features FeatureTable, key string) FeatureAccessResult {
	level, xp := st.Level(), st.TotalXP()
	def, known := features[key]

	if st != nil && st.Features != nil {
		if st.Features.Unlocked[key] {
			return FeatureAccessResult{
				Key:           key,
				Unlocked:      true,
				RequiredLevel: def.RequiredLevel,
				UserLevel:     level,
				FromBackend:   true,
			}
		}
		if lf, ok := st.Features.Locked[key]; ok {
			return FeatureAccessResult{
				Key:           key,
				Unlocked:      lf.TrialActive,
				RequiredLevel: lf.RequiredLevel,
				UserLevel:     lf.UserLevel,
				XPNeeded:      max(0, lf.XPNeeded),
				TrialActive:   lf.TrialActive,
				TrialEndsAt:   lf.TrialEndsAt,
				FromBackend:   true,
			}
		}
	}

	if !known {
		return FeatureAccessResult{Key: key, Unlocked: true, UserLevel: level}
	}
	threshold := def.XPThreshold
	if d, ok := levels.Get(def.RequiredLevel); ok && def.RequiredLevel > 0 {
		threshold = d.MinXP
	}
	return FeatureAccessResult{
		Key:           key,
		Unlocked:      level >= def.RequiredLevel,
		RequiredLevel: def.RequiredLevel,
		UserLevel:     level,
		XPNeeded:      max(0, threshold-xp),
	}
}

// IsFeatureUnlocked reports whether key is available. Unknown keys are
// unlocked; these gates are cosmetic and must not be used for authorization.
func (s *Service) IsFeatureUnlocked(key string) bool {
	return featureAccess(s.Snapshot(), s.levels, s.features, key).Unlocked
}

func (s *Service) GetFeatureAccess(key string) FeatureAccessResult {
	return featureAccess(s.Snapshot(), s.levels, s.features, key)
}

// RequireFeature returns a GateError when key is locked.
func (s *Service) RequireFeature(key string) error {
	res := s.GetFeatureAccess(key)
	if res.Unlocked {
		return nil
	}
	name := key
	if def, ok := s.features[key]; ok {
		name = def.Name
	}
	return GateError{
		Feature:       name,
		RequiredLevel: res.RequiredLevel,
		CurrentLevel:  res.UserLevel,
		XPNeeded:      res.XPNeeded,
	}
}

// Features returns the feature table in unlock order.
func (s *Service) Features() []FeatureGateDefinition {
	keys := s.features.Keys()
	out := make([]FeatureGateDefinition, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.features[k])
	}
	return out
}

func (s *Service) Feature(key string) (FeatureGateDefinition, bool) {
	def, ok := s.features[key]
	return def, ok
}
