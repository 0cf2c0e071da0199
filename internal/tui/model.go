package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"finquest/internal/engine"
	"finquest/internal/featuregate"
	"finquest/internal/notify"
	"finquest/internal/ui"
)

type boardModel struct {
	ctx  context.Context
	svc  *engine.Service
	user string

	width  int
	height int

	state *engine.State
	note  *notify.Notification
	phase notify.Phase

	lastLog string
	loading bool
}

type loadedMsg struct {
	err error
}

type recordedMsg struct {
	action engine.ActionType
	res    *engine.ActionResult
}

type noteMsg struct {
	note  notify.Notification
	phase notify.Phase
}

func newBoardModel(ctx context.Context, svc *engine.Service, user string) boardModel {
	return boardModel{
		ctx:     ctx,
		svc:     svc,
		user:    user,
		loading: true,
		lastLog: "Loading…",
	}
}

func (m boardModel) Init() tea.Cmd {
	return m.loadCmd(false)
}

func (m boardModel) loadCmd(force bool) tea.Cmd {
	return func() tea.Msg {
		if force {
			return loadedMsg{err: m.svc.LoadProfile(m.ctx)}
		}
		return loadedMsg{err: m.svc.RefreshData(m.ctx)}
	}
}

func (m boardModel) recordCmd(action engine.ActionType, entityType, entityID, desc string) tea.Cmd {
	return func() tea.Msg {
		res := m.svc.RecordAction(m.ctx, action, entityType, entityID, desc)
		return recordedMsg{action: action, res: res}
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case loadedMsg:
		m.loading = false
		m.state = m.svc.Snapshot()
		if msg.err != nil {
			m.lastLog = "Load failed: " + msg.err.Error()
			return m, nil
		}
		m.lastLog = fmt.Sprintf("Refreshed at %s.", time.Now().Format("15:04:05"))
		return m, nil
	case recordedMsg:
		m.state = m.svc.Snapshot()
		if msg.res == nil {
			m.lastLog = fmt.Sprintf("%s: no XP awarded.", msg.action)
			return m, nil
		}
		m.lastLog = fmt.Sprintf("%s: +%d XP (level %d)", msg.action, msg.res.XPEarned, msg.res.Level)
		return m, nil
	case noteMsg:
		if msg.phase == notify.PhaseHidden {
			m.note = nil
		} else {
			n := msg.note
			m.note = &n
		}
		m.phase = msg.phase
		m.state = m.svc.Snapshot()
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.lastLog = "Refreshing…"
			return m, m.loadCmd(true)
		case "v":
			m.lastLog = "Recording dashboard view…"
			return m, m.recordCmd(engine.ActionViewDashboard, "dashboard", "board", "Viewed dashboard")
		case "i":
			if !m.svc.IsFeatureUnlocked(engine.FeatureAIInsights) {
				m.lastLog = m.svc.RequireFeature(engine.FeatureAIInsights).Error()
				return m, nil
			}
			return m, m.recordCmd(engine.ActionViewInsight, "insight", "board", "Viewed insights")
		}
	}
	return m, nil
}

func (m boardModel) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderFeatures())
	b.WriteString("\n")
	b.WriteString(m.renderAchievements())
	if toast := m.renderToast(); toast != "" {
		b.WriteString("\n")
		b.WriteString(toast)
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m boardModel) renderHeader() string {
	if m.state == nil || m.state.Profile == nil {
		if m.loading {
			return ui.Heading(ui.IconCoin, "finquest") + " " + ui.Muted.Render("loading…")
		}
		return ui.Heading(ui.IconCoin, "finquest") + " " + ui.Muted.Render("no gamification profile")
	}
	levels := m.svc.Levels()
	prog := levels.Progress(m.state.Level(), m.state.TotalXP())
	name := ui.LevelStyle(prog.Current.Color).Render(fmt.Sprintf("Lv %d %s", max(1, m.state.Level()), prog.Current.Name))
	next := ui.Muted.Render("max level")
	if prog.Next != nil {
		next = ui.Muted.Render(fmt.Sprintf("%d XP to %s", prog.XPToNext, prog.Next.Name))
	}
	return fmt.Sprintf("%s | %s | %s | XP %d %s %.0f%% %s",
		ui.Heading(ui.IconCoin, "finquest"), m.user, name, m.state.TotalXP(),
		ui.ProgressBar(prog.Percent, 24), prog.Percent, next)
}

func (m boardModel) renderFeatures() string {
	lines := []string{ui.PanelTitle.Render("Features")}
	for _, def := range m.svc.Features() {
		in := featuregate.For(m.svc, def.Key, featuregate.ModePreview, false)
		d := featuregate.Decide(in)
		switch d.Render {
		case featuregate.RenderContent:
			label := ui.Good.Render("available")
			if in.Access.TrialActive {
				label = ui.Warn.Render("trial")
			}
			lines = append(lines, fmt.Sprintf("%s %s %s", def.Icon, def.Name, label))
		case featuregate.RenderPreview:
			p := d.Preview
			lines = append(lines, fmt.Sprintf("%s %s %s level %d %s %.0f%%",
				ui.IconLock, p.Name, ui.Muted.Render("unlocks at"), p.RequiredLevel,
				ui.ProgressBar(p.ProgressPct, 12), p.ProgressPct))
		}
	}
	return ui.Panel.Render(strings.Join(lines, "\n"))
}

func (m boardModel) renderAchievements() string {
	lines := []string{ui.PanelTitle.Render("Achievements")}
	if m.state == nil || len(m.state.Achievements) == 0 {
		lines = append(lines, ui.Muted.Render("(none yet)"))
		return ui.Panel.Render(strings.Join(lines, "\n"))
	}
	for _, a := range m.state.Achievements {
		mark := ui.Muted.Render(fmt.Sprintf("%d/%d", a.DisplayProgress(), a.Target))
		if a.Completed() {
			mark = ui.Good.Render("done")
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", a.Icon(), a.Name, mark))
	}
	return ui.Panel.Render(strings.Join(lines, "\n"))
}

func (m boardModel) renderToast() string {
	if m.note == nil {
		return ""
	}
	n := m.note
	title := n.Title
	switch n.Kind {
	case notify.KindLevelUp:
		title = ui.BadgeLevelUp + " " + n.LevelName
	case notify.KindXPGained:
		title = ui.IconBolt + " " + title
	case notify.KindAchievementUnlocked:
		title = ui.IconTrophy + " " + title
	}
	body := title
	if n.Message != "" {
		body += "\n" + n.Message
	}
	if m.phase == notify.PhaseExiting {
		return ui.Muted.Render(body)
	}
	return ui.Toast.Render(body)
}

func (m boardModel) renderFooter() string {
	keys := ui.Muted.Render("r refresh · v record dashboard view · i insights · q quit")
	return m.lastLog + "\n" + keys
}
