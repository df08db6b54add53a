// Package tui is the terminal front-end for the selection controller, built on
// Bubble Tea.
//
// The controller pushes state through [Surface], which forwards it into the
// running program with Program.Send. Every controller call is issued from a
// tea.Cmd, never from Update, so Send cannot block the event loop.
package tui

import (
	"context"
	"errors"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"weekly-menu-planner/internal/grocery"
	"weekly-menu-planner/internal/logger"
	"weekly-menu-planner/internal/preview"
	"weekly-menu-planner/internal/recipe"
	"weekly-menu-planner/internal/selector"
)

// Controller is the part of the selection controller the UI drives.
type Controller interface {
	Load(ctx context.Context, fresh bool) error
	Toggle(ctx context.Context, id string) (selector.ToggleResult, error)
	ApplyFilters(criteria recipe.Criteria) []recipe.Recipe
	RequestGroceryList(ctx context.Context) (*grocery.List, error)
	CloseGroceryList()
	Snapshot() selector.View
}

// Previewer fetches a summary of a recipe's source page.
type Previewer interface {
	Fetch(ctx context.Context, url string) (*preview.Preview, error)
}

// Messages pushed from the controller.
type (
	viewMsg    selector.View
	noteMsg    selector.Notification
	loadingMsg struct {
		text    string
		loading bool
	}
)

// Surface implements selector.Surface by sending messages to the program.
// Output sent before the program starts or after it exits is dropped.
type Surface struct {
	program atomic.Pointer[tea.Program]
}

// NewSurface creates an unattached surface.
func NewSurface() *Surface { return &Surface{} }

func (s *Surface) send(msg tea.Msg) {
	if p := s.program.Load(); p != nil {
		p.Send(msg)
	}
}

func (s *Surface) Render(v selector.View) { s.send(viewMsg(v)) }

func (s *Surface) Notify(n selector.Notification) { s.send(noteMsg(n)) }

func (s *Surface) SetLoading(text string, loading bool) {
	s.send(loadingMsg{text: text, loading: loading})
}

// App wires a controller to the terminal.
type App struct {
	ctl       Controller
	surface   *Surface
	previewer Previewer
	exportDir string
	log       logger.Logger
}

// NewApp creates the terminal app. previewer may be nil.
func NewApp(ctl Controller, surface *Surface, previewer Previewer, exportDir string, log logger.Logger) *App {
	if log == nil {
		log = logger.NewNop()
	}
	return &App{ctl: ctl, surface: surface, previewer: previewer, exportDir: exportDir, log: log}
}

// Run starts the event loop and blocks until the user quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	m := newModel(ctx, a.ctl, a.previewer, a.exportDir)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	a.surface.program.Store(p)
	defer a.surface.program.Store(nil)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
