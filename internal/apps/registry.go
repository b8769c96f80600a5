package apps

import (
	"errors"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"

	"github.com/ispwin/ispwin/internal/logging"
	"github.com/ispwin/ispwin/internal/theme"
	"github.com/ispwin/ispwin/internal/vfs"
	"github.com/ispwin/ispwin/internal/wm"
)

var logger = logging.New("apps")

const idSuffixLen = 7

// cascadeSteps is how many offsets new windows walk through before wrapping.
const cascadeSteps = 8

// Placement configures where new windows appear.
type Placement struct {
	X, Y          int
	Width, Height int
	// Cascade offsets each new window by this many cells from the last.
	Cascade int
}

// DefaultPlacement matches the config defaults.
var DefaultPlacement = Placement{X: 4, Y: 2, Width: 52, Height: 16, Cascade: 2}

// Registry maps app ids to metadata and windows to their mounted views.
type Registry struct {
	wm        *wm.Manager
	fs        *vfs.FS
	bus       Sender
	theme     *theme.Manager
	placement Placement

	apps  map[string]Meta
	icons []string
	views map[string]View

	pending []tea.Cmd

	newSuffix func() string
	factories map[Kind]func(Context) View
}

// NewRegistry returns an empty registry mounting apps into windows of m.
// bus may be nil.
func NewRegistry(m *wm.Manager, fs *vfs.FS, bus Sender, th *theme.Manager, p Placement) *Registry {
	return &Registry{
		wm:        m,
		fs:        fs,
		bus:       bus,
		theme:     th,
		placement: p,
		apps:      make(map[string]Meta),
		views:     make(map[string]View),
		newSuffix: randomSuffix,
		factories: map[Kind]func(Context) View{
			KindExplorer:   newExplorer,
			KindEditor:     newEditor,
			KindCalculator: newCalculator,
			KindTerminal:   newTerminal,
			KindSettings:   newSettings,
		},
	}
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:idSuffixLen]
}

// Register adds or replaces an app. Every call adds a desktop icon, so
// registering an id twice shows it twice.
func (r *Registry) Register(meta Meta) {
	if _, ok := r.apps[meta.ID]; ok {
		logger.Debug("replacing app metadata", "app", meta.ID)
	}
	r.apps[meta.ID] = meta
	r.icons = append(r.icons, meta.ID)
}

// Meta returns the metadata registered for id.
func (r *Registry) Meta(id string) (Meta, bool) {
	m, ok := r.apps[id]
	return m, ok
}

// Icons returns one entry per desktop icon in registration order.
func (r *Registry) Icons() []Meta {
	out := make([]Meta, 0, len(r.icons))
	for _, id := range r.icons {
		out = append(out, r.apps[id])
	}
	return out
}

// Open launches app id. A single-instance app with an open window gets that
// window restored and returned; opts are then ignored.
func (r *Registry) Open(id string, opts Options) (*wm.Window, error) {
	meta, ok := r.apps[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownApp)
	}

	if meta.SingleInstance {
		if w, ok := r.wm.FindByApp(id); ok {
			r.wm.Restore(w.ID)
			return w, nil
		}
	}

	w, err := r.createWindow(meta, opts)
	if err != nil {
		return nil, err
	}

	ctx := Context{
		FS:      r.fs,
		Open:    r.Open,
		Bus:     r.bus,
		Window:  w,
		Theme:   r.theme,
		Options: opts,
	}
	view := r.mount(meta, ctx)
	r.views[w.ID] = view
	if cmd := r.guardInit(w.ID, view); cmd != nil {
		r.pending = append(r.pending, cmd)
	}
	logger.Info("opened app", "app", id, "window", w.ID)
	return w, nil
}

func (r *Registry) createWindow(meta Meta, opts Options) (*wm.Window, error) {
	p := r.placement
	step := (r.wm.Len() % cascadeSteps) * p.Cascade
	x, y := p.X+step, p.Y+step
	if opts.X != nil {
		x = *opts.X
	}
	if opts.Y != nil {
		y = *opts.Y
	}

	for {
		w, err := r.wm.Create(wm.Spec{
			ID:       meta.ID + "-" + r.newSuffix(),
			Title:    meta.Title,
			AppID:    meta.ID,
			Geometry: wm.Geometry{X: x, Y: y, Width: p.Width, Height: p.Height},
		})
		if errors.Is(err, wm.ErrWindowExists) {
			continue
		}
		return w, err
	}
}

// mount builds the view for meta. A panicking constructor yields the failure
// view instead.
func (r *Registry) mount(meta Meta, ctx Context) (view View) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("app failed to mount", "app", meta.ID, "window", ctx.Window.ID, "panic", p)
			view = newFailure()
		}
	}()

	factory, ok := r.factories[meta.Kind]
	if !ok {
		panic(fmt.Sprintf("no view for kind %s", meta.Kind))
	}
	return factory(ctx)
}

func (r *Registry) guardInit(winID string, v View) (cmd tea.Cmd) {
	defer func() {
		if p := recover(); p != nil {
			r.fail(winID, p)
			cmd = nil
		}
	}()
	return v.Init()
}

func (r *Registry) fail(winID string, p any) {
	logger.Error("app crashed", "window", winID, "panic", p)
	r.views[winID] = newFailure()
}

// View returns the view mounted in a window.
func (r *Registry) View(winID string) (View, bool) {
	v, ok := r.views[winID]
	return v, ok
}

// Forget drops the view of a closed window.
func (r *Registry) Forget(winID string) {
	delete(r.views, winID)
}

// Update passes msg to one window's view.
func (r *Registry) Update(winID string, msg tea.Msg) (cmd tea.Cmd) {
	v, ok := r.views[winID]
	if !ok {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			r.fail(winID, p)
			cmd = nil
		}
	}()
	return v.Update(msg)
}

// Broadcast passes msg to every view, for messages not aimed at one window.
func (r *Registry) Broadcast(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for id := range r.views {
		if cmd := r.Update(id, msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

// Click forwards a click in a window's content area to its view.
func (r *Registry) Click(winID string, x, y int, double bool) (cmd tea.Cmd) {
	c, ok := r.views[winID].(Clicker)
	if !ok {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			r.fail(winID, p)
			cmd = nil
		}
	}()
	return c.Click(x, y, double)
}

// Render draws one window's content. A view that panics while rendering is
// replaced by the failure view.
func (r *Registry) Render(winID string, width, height int) (out string) {
	v, ok := r.views[winID]
	if !ok {
		return ""
	}
	defer func() {
		if p := recover(); p != nil {
			r.fail(winID, p)
			out = r.views[winID].View(width, height)
		}
	}()
	return v.View(width, height)
}

// TakeCmds returns the commands queued by opens since the last call.
func (r *Registry) TakeCmds() tea.Cmd {
	if len(r.pending) == 0 {
		return nil
	}
	cmds := r.pending
	r.pending = nil
	return tea.Batch(cmds...)
}
