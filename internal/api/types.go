package api

import "time"

// User is the backend account record. Only part of it is ever cached locally.
type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Username         string `json:"username,omitempty"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	Role             string `json:"role,omitempty"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
	CreatedAt        string `json:"created_at,omitempty"`
}

type AuthResponse struct {
	Token     string
	ExpiresAt time.Time
	User      User
}

type LoginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"two_factor_code,omitempty"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type TwoFASetup struct {
	Secret      string   `json:"secret"`
	QRCode      string   `json:"qr_code"`
	BackupCodes []string `json:"backup_codes"`
}

type GamificationProfile struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	TotalXP      int       `json:"total_xp"`
	CurrentLevel int       `json:"current_level"`
	LastUpdated  time.Time `json:"last_updated"`
}

type GamificationStats struct {
	TotalXP               int     `json:"total_xp"`
	CurrentLevel          int     `json:"current_level"`
	XPToNextLevel         int     `json:"xp_to_next_level"`
	ProgressPercent       float64 `json:"progress_percent"`
	CompletedAchievements int     `json:"completed_achievements"`
	TotalAchievements     int     `json:"total_achievements"`
	CurrentStreak         int     `json:"current_streak"`
	TotalActions          int     `json:"total_actions"`
}

type Achievement struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Progress    int        `json:"progress"`
	Target      int        `json:"target"`
	Completed   bool       `json:"completed"`
	Points      int        `json:"points"`
	UnlockedAt  *time.Time `json:"unlocked_at"`
}

type LockedFeature struct {
	FeatureKey    string     `json:"feature_key"`
	FeatureName   string     `json:"feature_name"`
	RequiredLevel int        `json:"required_level"`
	UserLevel     int        `json:"user_level"`
	XPNeeded      int        `json:"xp_needed"`
	TrialActive   bool       `json:"trial_active"`
	TrialEndsAt   *time.Time `json:"trial_ends_at"`
}

type FeaturesResponse struct {
	UnlockedFeatures []string        `json:"unlocked_features"`
	LockedFeatures   []LockedFeature `json:"locked_features"`
}

type ActionRequest struct {
	ActionType  string `json:"action_type"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	Description string `json:"description"`
}

// ActionResponse is the normalized result of recording an action. Level holds
// current_level when the backend sent it, otherwise new_level; nil when
// neither was present.
type ActionResponse struct {
	XPEarned        int
	TotalXP         *int
	Level           *int
	LevelUp         bool
	NewAchievements []Achievement
}

type RuntimeConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
}
