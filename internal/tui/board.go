package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"finquest/internal/engine"
	"finquest/internal/notify"
)

func RunBoard(ctx context.Context, svc *engine.Service, queue *notify.Queue, user string, out io.Writer) error {
	m := newBoardModel(ctx, svc, user)
	p := tea.NewProgram(m, tea.WithOutput(out))
	if queue != nil {
		queue.OnChange(func(n notify.Notification, phase notify.Phase) {
			p.Send(noteMsg{note: n, phase: phase})
		})
	}
	_, err := p.Run()
	return err
}
