package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/i474232898/ecovision/internal/orchestrator"
)

// Source is an orchestrator that can be observed and started.
type Source interface {
	Dispatcher
	Subscribe(fn func(orchestrator.View)) (unsubscribe func())
	Start(ctx context.Context) error
}

// Run shows the dashboard until the user quits or ctx is done. The
// orchestrator is started once the program is running.
func Run(ctx context.Context, orch Source) error {
	var p *tea.Program
	ready := make(chan struct{})

	m, unsubscribe := attach(ctx, orch, func(msg tea.Msg) {
		select {
		case <-ready:
			p.Send(msg)
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	close(ready)

	_, err := p.Run()
	return err
}

// attach subscribes send to orch before the model takes its first view, so
// no update published in between is lost. The model starts orch from Init.
func attach(ctx context.Context, orch Source, send func(tea.Msg)) (Model, func()) {
	unsubscribe := orch.Subscribe(func(v orchestrator.View) {
		send(ViewUpdated(v))
	})

	m := NewModel(orch)
	m.start = func() error { return orch.Start(ctx) }
	return m, unsubscribe
}
