package engine

// ActionType names a user action the backend awards XP for.
type ActionType string

const (
	ActionDailyLogin      ActionType = "daily_login"
	ActionCreateExpense   ActionType = "create_expense"
	ActionCreateIncome    ActionType = "create_income"
	ActionCreateBudget    ActionType = "create_budget"
	ActionCreateGoal      ActionType = "create_savings_goal"
	ActionViewDashboard   ActionType = "view_dashboard"
	ActionViewInsight     ActionType = "view_insight"
	ActionCompleteProfile ActionType = "complete_profile"
)

// IsKnown reports whether the backend is known to score this action. Unknown
// actions are still sent; the backend decides.
func (a ActionType) IsKnown() bool {
	switch a {
	case ActionDailyLogin, ActionCreateExpense, ActionCreateIncome, ActionCreateBudget,
		ActionCreateGoal, ActionViewDashboard, ActionViewInsight, ActionCompleteProfile:
		return true
	default:
		return false
	}
}

// notifiesXP is false for actions whose XP is awarded silently.
func (a ActionType) notifiesXP() bool {
	return a != ActionViewInsight
}

type AchievementType string

const (
	AchievementAIPartner     AchievementType = "ai_partner"
	AchievementActionTaker   AchievementType = "action_taker"
	AchievementDataExplorer  AchievementType = "data_explorer"
	AchievementQuickLearner  AchievementType = "quick_learner"
	AchievementInsightMaster AchievementType = "insight_master"
	AchievementStreakKeeper  AchievementType = "streak_keeper"
)

func (t AchievementType) IsValid() bool {
	switch t {
	case AchievementAIPartner, AchievementActionTaker, AchievementDataExplorer,
		AchievementQuickLearner, AchievementInsightMaster, AchievementStreakKeeper:
		return true
	default:
		return false
	}
}

// Icon is the badge shown next to an achievement of this type.
func (t AchievementType) Icon() string {
	switch t {
	case AchievementAIPartner:
		return "🤖"
	case AchievementActionTaker:
		return "⚡"
	case AchievementDataExplorer:
		return "📊"
	case AchievementQuickLearner:
		return "🎓"
	case AchievementInsightMaster:
		return "💡"
	case AchievementStreakKeeper:
		return "🔥"
	default:
		return "🏅"
	}
}

// DedupKey identifies an in-flight action.
func DedupKey(actionType ActionType, entityType, entityID string) string {
	return string(actionType) + "-" + entityType + "-" + entityID
}
