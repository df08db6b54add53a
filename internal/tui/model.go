package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"weekly-menu-planner/internal/grocery"
	"weekly-menu-planner/internal/preview"
	"weekly-menu-planner/internal/recipe"
	"weekly-menu-planner/internal/selector"
)

const noteTTL = 5 * time.Second

// Local results of commands.
type (
	clearNoteMsg struct{ id int }
	previewMsg   struct {
		preview *preview.Preview
		err     error
	}
	exportedMsg struct {
		path string
		err  error
	}
)

// binding pairs a key with its handler. The maps are built once per model.
type binding struct {
	key    key.Binding
	action func(m *model) tea.Cmd
}

type model struct {
	ctx       context.Context
	ctl       Controller
	previewer Previewer
	exportDir string

	view      selector.View
	cursor    int
	note      *selector.Notification
	noteID    int
	loading   bool
	loadText  string
	preview   *preview.Preview
	exportMsg string

	spinner  spinner.Model
	grocery  viewport.Model
	help     help.Model
	browse   []binding
	shopping []binding
	width    int
	height   int
}

func newModel(ctx context.Context, ctl Controller, previewer Previewer, exportDir string) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle

	m := model{
		ctx:       ctx,
		ctl:       ctl,
		previewer: previewer,
		exportDir: exportDir,
		view:      ctl.Snapshot(),
		spinner:   sp,
		grocery:   viewport.New(80, 20),
		help:      help.New(),
		width:     80,
		height:    24,
	}
	m.browse = browseBindings()
	m.shopping = shoppingBindings()
	return m
}

func browseBindings() []binding {
	return []binding{
		{key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")), (*model).up},
		{key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")), (*model).down},
		{key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "select")), (*model).toggleCurrent},
		{key.NewBinding(key.WithKeys("1", "2", "3", "4"), key.WithHelp("1-4", "remove from menu")), nil},
		{key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "protein")), func(m *model) tea.Cmd { return m.cycleFilter(filterProtein) }},
		{key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cuisine")), func(m *model) tea.Cmd { return m.cycleFilter(filterCuisine) }},
		{key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "method")), func(m *model) tea.Cmd { return m.cycleFilter(filterMethod) }},
		{key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear filters")), (*model).clearFilters},
		{key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "preview source")), (*model).previewCurrent},
		{key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")), func(m *model) tea.Cmd { return m.load(false) }},
		{key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "fresh recipes")), func(m *model) tea.Cmd { return m.load(true) }},
		{key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "grocery list")), (*model).requestGrocery},
		{key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")), func(*model) tea.Cmd { return tea.Quit }},
	}
}

func shoppingBindings() []binding {
	return []binding{
		{key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "save .txt")), func(m *model) tea.Cmd { return m.export(grocery.FormatText) }},
		{key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "save .md")), func(m *model) tea.Cmd { return m.export(grocery.FormatMarkdown) }},
		{key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save .xlsx")), func(m *model) tea.Cmd { return m.export(grocery.FormatXLSX) }},
		{key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")), (*model).closeGrocery},
		{key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")), func(*model) tea.Cmd { return tea.Quit }},
	}
}

// helpKeys adapts a binding list to help.KeyMap.
type helpKeys []binding

func (h helpKeys) ShortHelp() []key.Binding {
	keys := make([]key.Binding, 0, len(h))
	for _, b := range h {
		keys = append(keys, b.key)
	}
	return keys
}

func (h helpKeys) FullHelp() [][]key.Binding { return [][]key.Binding{h.ShortHelp()} }

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load(false))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.grocery.Width = msg.Width
		m.grocery.Height = max(5, msg.Height-6)
		return m, nil

	case viewMsg:
		m.setView(selector.View(msg))
		return m, nil

	case noteMsg:
		n := selector.Notification(msg)
		m.note = &n
		m.noteID++
		id := m.noteID
		return m, tea.Tick(noteTTL, func(time.Time) tea.Msg { return clearNoteMsg{id: id} })

	case clearNoteMsg:
		if msg.id == m.noteID {
			m.note = nil
		}
		return m, nil

	case loadingMsg:
		m.loading, m.loadText = msg.loading, msg.text
		return m, nil

	case previewMsg:
		if msg.err != nil {
			m.note = &selector.Notification{Level: selector.LevelError, Message: "Could not load recipe source: " + msg.err.Error()}
			return m, nil
		}
		m.preview = msg.preview
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.exportMsg = errorStyle.Render("Export failed: " + msg.err.Error())
		} else {
			m.exportMsg = successStyle.Render("Saved " + msg.path)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.view.GroceryList != nil {
			if cmd, ok := m.dispatch(m.shopping, msg); ok {
				return m, cmd
			}
			var cmd tea.Cmd
			m.grocery, cmd = m.grocery.Update(msg)
			return m, cmd
		}
		if cmd, ok := m.dispatch(m.browse, msg); ok {
			return m, cmd
		}
	}
	return m, nil
}

func (m *model) dispatch(bindings []binding, msg tea.KeyMsg) (tea.Cmd, bool) {
	for _, b := range bindings {
		if !key.Matches(msg, b.key) {
			continue
		}
		if b.action == nil {
			// Digits pick a slot in the selection tray.
			return m.removeSlot(msg.String()), true
		}
		return b.action(m), true
	}
	return nil, false
}

func (m *model) setView(v selector.View) {
	opened := m.view.GroceryList == nil && v.GroceryList != nil
	m.view = v
	m.cursor = max(0, min(m.cursor, len(v.Displayed)-1))
	if v.GroceryList != nil && opened {
		m.grocery.SetContent(v.GroceryList.Text())
		m.grocery.GotoTop()
		m.exportMsg = ""
	}
}

func (m *model) up() tea.Cmd {
	m.moveCursor(-1)
	return nil
}

func (m *model) down() tea.Cmd {
	m.moveCursor(1)
	return nil
}

func (m *model) moveCursor(delta int) {
	if len(m.view.Displayed) == 0 {
		m.cursor = 0
		return
	}
	m.cursor = (m.cursor + delta + len(m.view.Displayed)) % len(m.view.Displayed)
	m.preview = nil
}

func (m *model) current() (recipe.Recipe, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view.Displayed) {
		return recipe.Recipe{}, false
	}
	return m.view.Displayed[m.cursor], true
}

func (m *model) load(fresh bool) tea.Cmd {
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		_ = ctl.Load(ctx, fresh)
		return nil
	}
}

func (m *model) toggle(id string) tea.Cmd {
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		// Rejections are reported to the surface by the controller.
		_, _ = ctl.Toggle(ctx, id)
		return nil
	}
}

func (m *model) toggleCurrent() tea.Cmd {
	r, ok := m.current()
	if !ok {
		return nil
	}
	return m.toggle(r.ID)
}

func (m *model) removeSlot(digit string) tea.Cmd {
	i := int(digit[0]-'1')
	if i < 0 || i >= len(m.view.Selection) {
		return nil
	}
	return m.toggle(m.view.Selection[i].ID)
}

type filterField int

const (
	filterProtein filterField = iota
	filterCuisine
	filterMethod
)

func (f filterField) get(r recipe.Recipe) string {
	switch f {
	case filterProtein:
		return r.Protein
	case filterCuisine:
		return r.Cuisine
	default:
		return r.CookingMethod
	}
}

func (f filterField) ptr(c *recipe.Criteria) *string {
	switch f {
	case filterProtein:
		return &c.Protein
	case filterCuisine:
		return &c.Cuisine
	default:
		return &c.CookingMethod
	}
}

// cycleFilter steps a criterion through "any" and each value present in the pool.
func (m *model) cycleFilter(f filterField) tea.Cmd {
	options := recipe.Options(recipe.Without(m.view.Pool, m.view.Selection), f.get)
	criteria := m.view.Filters
	field := f.ptr(&criteria)

	next := ""
	if i := slices.Index(options, *field); i < 0 && len(options) > 0 {
		next = options[0]
	} else if i >= 0 && i+1 < len(options) {
		next = options[i+1]
	}
	*field = next
	return m.applyFilters(criteria)
}

func (m *model) clearFilters() tea.Cmd {
	return m.applyFilters(recipe.Criteria{})
}

func (m *model) applyFilters(c recipe.Criteria) tea.Cmd {
	ctl := m.ctl
	m.cursor = 0
	return func() tea.Msg {
		ctl.ApplyFilters(c)
		return nil
	}
}

func (m *model) previewCurrent() tea.Cmd {
	r, ok := m.current()
	if !ok || m.previewer == nil {
		return nil
	}
	if r.SourceURL == "" {
		m.note = &selector.Notification{Level: selector.LevelInfo, Message: "This recipe has no source page"}
		return nil
	}
	ctx, previewer := m.ctx, m.previewer
	return func() tea.Msg {
		p, err := previewer.Fetch(ctx, r.SourceURL)
		return previewMsg{preview: p, err: err}
	}
}

func (m *model) requestGrocery() tea.Cmd {
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		_, _ = ctl.RequestGroceryList(ctx)
		return nil
	}
}

func (m *model) closeGrocery() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctl.CloseGroceryList()
		return nil
	}
}

func (m *model) export(format grocery.Format) tea.Cmd {
	list, dir := m.view.GroceryList, m.exportDir
	if list == nil {
		return nil
	}
	return func() tea.Msg {
		path, err := list.Export(dir, format)
		return exportedMsg{path: path, err: err}
	}
}

func (m model) View() string {
	var b strings.Builder

	title := titleStyle.Render("Weekly Menu Planner")
	if m.view.Fallback {
		title += "  " + warningStyle.Render("[sample recipes]")
	}
	b.WriteString(title + "\n\n")

	if m.view.GroceryList != nil {
		b.WriteString(m.grocery.View() + "\n")
		b.WriteString(m.statusLine())
		if m.exportMsg != "" {
			b.WriteString(m.exportMsg + "\n")
		}
		b.WriteString(m.help.View(helpKeys(m.shopping)))
		return b.String()
	}

	b.WriteString(renderProgress(m.view.Progress, m.width) + "\n")
	b.WriteString(renderFilters(m.view.Filters) + "\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("Suggestions (%d)", len(m.view.Displayed))) + "\n")
	if len(m.view.Displayed) == 0 {
		b.WriteString(dimStyle.Render("  No recipes match the current filters") + "\n")
	}
	for i, r := range m.view.Displayed {
		cursor := "  "
		line := recipeLine(r)
		if i == m.cursor {
			cursor = accentStyle.Render("> ")
			line = selectedStyle.Render(line)
		}
		b.WriteString(cursor + line + "\n")
	}
	if m.preview != nil {
		b.WriteString(renderPreview(m.preview))
	}

	b.WriteString("\n" + headerStyle.Render(fmt.Sprintf("Your menu (%d/%d)", len(m.view.Selection), recipe.MaxSelections)) + "\n")
	for i, r := range m.view.Selection {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, r.Name))
	}

	if o := m.view.Overlap; o != nil {
		b.WriteString("\n" + renderOverlap(o))
	}

	button := dimStyle.Render("[ " + m.view.GroceryLabel + " ]")
	if m.view.GroceryEnabled {
		button = successStyle.Render("[ " + m.view.GroceryLabel + " ] (g)")
	}
	b.WriteString("\n" + button + "\n\n")

	b.WriteString(m.statusLine())
	b.WriteString(m.help.View(helpKeys(m.browse)))
	return b.String()
}

func (m model) statusLine() string {
	var parts []string
	if m.loading {
		parts = append(parts, m.spinner.View()+" "+m.loadText)
	}
	if m.note != nil {
		parts = append(parts, noteStyle(m.note.Level).Render(m.note.Message))
	}
	if len(parts) == 0 {
		return "\n"
	}
	return strings.Join(parts, "  ") + "\n"
}

func recipeLine(r recipe.Recipe) string {
	fields := []string{r.Name}
	for _, f := range []string{r.Protein, r.Cuisine, r.CookingMethod, r.PrepTime} {
		if f != "" {
			fields = append(fields, f)
		}
	}
	line := strings.Join(fields, " · ")
	if r.Source == "web_search" {
		line += " " + dimStyle.Render("(web)")
	} else if r.IsFavorite || r.Source == "user_favorite" {
		line += " " + accentStyle.Render("★")
	}
	return line
}

func renderProgress(p selector.Progress, width int) string {
	barWidth := max(10, min(40, width-20))
	filled := barWidth * p.Percent / 100
	bar := progressFull.Render(strings.Repeat("█", filled)) + progressEmpty.Render(strings.Repeat("░", barWidth-filled))
	return fmt.Sprintf("%s %3d%%  %s", bar, p.Percent, p.Message)
}

func renderFilters(c recipe.Criteria) string {
	show := func(v string) string {
		if v == "" {
			return dimStyle.Render("any")
		}
		return accentStyle.Render(v)
	}
	return fmt.Sprintf("Filters: protein %s  cuisine %s  method %s", show(c.Protein), show(c.Cuisine), show(c.CookingMethod))
}

func renderOverlap(o *selector.OverlapReport) string {
	tier := o.Tier()
	style := dimStyle
	switch tier {
	case "excellent":
		style = successStyle
	case "good":
		style = accentStyle
	}
	s := headerStyle.Render("Ingredient overlap") + "\n"
	s += fmt.Sprintf("  %d shared of %d unique ingredients, efficiency %s\n",
		len(o.SharedIngredients), o.TotalUnique, style.Render(fmt.Sprintf("%d%% (%s)", o.Efficiency, tier)))
	if len(o.SharedIngredients) > 0 {
		s += dimStyle.Render("  "+strings.Join(o.SharedIngredients, ", ")) + "\n"
	}
	return s
}

func renderPreview(p *preview.Preview) string {
	var sb strings.Builder
	sb.WriteString(previewStyle.Render(p.Title) + "\n")
	if p.Description != "" {
		sb.WriteString(dimStyle.Render("  "+p.Description) + "\n")
	}
	for _, ing := range p.Ingredients {
		sb.WriteString("  - " + ing + "\n")
	}
	return sb.String()
}
