package console

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Notifier delivers scheduler messages into a running console.
// Messages sent before Run starts, or after it ends, are dropped.
type Notifier struct {
	mu      sync.RWMutex
	program *tea.Program
}

// Send shows content as a message delivered to destination.
func (n *Notifier) Send(_ context.Context, destination, content string) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.program != nil {
		n.program.Send(notificationMsg{destination: destination, content: content})
	}
	return nil
}

func (n *Notifier) attach(p *tea.Program) {
	n.mu.Lock()
	n.program = p
	n.mu.Unlock()
}

// Run starts the console and blocks until the user quits or ctx is done.
func Run(ctx context.Context, dispatch Dispatcher, session Session, notifier *Notifier, opts ...tea.ProgramOption) error {
	if dispatch == nil {
		return fmt.Errorf("dispatcher is required")
	}

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewModel(ctx, dispatch, session), opts...)
	if notifier != nil {
		notifier.attach(p)
		defer notifier.attach(nil)
	}

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}
