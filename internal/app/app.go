// Package app is the bubbletea front end over the sync core. It renders store
// snapshots and translates key input into session commands; all state lives
// in the store, never in the widgets.
package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dbscope/dbscope/internal/config"
	"github.com/dbscope/dbscope/internal/export"
	"github.com/dbscope/dbscope/internal/models"
	"github.com/dbscope/dbscope/internal/present"
	"github.com/dbscope/dbscope/internal/rowedit"
	"github.com/dbscope/dbscope/internal/session"
	"github.com/dbscope/dbscope/internal/store"
	"github.com/dbscope/dbscope/internal/ui/components"
	"github.com/dbscope/dbscope/internal/ui/help"
	"github.com/dbscope/dbscope/internal/ui/theme"
)

// StateMsg carries one committed store transition into the tea loop.
type StateMsg struct {
	Next store.State
	Prev store.State
}

type focusArea int

const (
	focusNav focusArea = iota
	focusContent
)

type inputMode int

const (
	inputNone inputMode = iota
	inputEditCell
	inputGoToRow
)

// navEntry is one row of the navigation panel: a database or one of its
// tables.
type navEntry struct {
	isTable bool
	dbID    int
	table   string
	label   string
}

// App is the main application model
type App struct {
	st   *store.Store
	sess *session.Session
	cfg  *config.Config
	th   theme.Theme

	state store.State
	ch    chan StateMsg

	width  int
	height int
	focus  focusArea

	navCursor int
	tableView *components.TableView
	sqlEditor *components.SQLEditor
	favDialog *components.FavoritesDialog

	input     textinput.Model
	mode      inputMode
	editCol   string
	statusMsg string

	showHelp      bool
	showFavorites bool
}

// New creates a new App instance wired to the store and session.
func New(st *store.Store, sess *session.Session, cfg *config.Config) *App {
	th := theme.GetTheme(cfg.UI.Theme)
	a := &App{
		st:        st,
		sess:      sess,
		cfg:       cfg,
		th:        th,
		state:     st.Get(),
		ch:        make(chan StateMsg, 256),
		tableView: components.NewTableView(th),
		sqlEditor: components.NewSQLEditor(th),
		favDialog: components.NewFavoritesDialog(th),
		input:     textinput.New(),
	}
	st.Subscribe(func(next, prev store.State) {
		a.ch <- StateMsg{Next: next, Prev: prev}
	})
	return a
}

// Init implements tea.Model: it starts the sync session and begins listening
// for store transitions.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			a.sess.Start()
			return nil
		},
		a.listen(),
	)
}

func (a *App) listen() tea.Cmd {
	return func() tea.Msg {
		return <-a.ch
	}
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		a.state = msg.Next
		a.refreshContent()
		return a, a.listen()

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.sqlEditor.SetSize(a.contentWidth(), a.contentHeight())
		a.tableView.Width = a.contentWidth()
		a.tableView.Height = a.contentHeight()
		a.favDialog.Width = a.contentWidth()
		a.favDialog.Height = a.contentHeight()
		return a, nil

	case components.PickFavoriteMsg:
		a.showFavorites = false
		a.sqlEditor.SetValue(msg.Query)
		a.sess.SetQuery(msg.Query)
		return a, nil

	case components.CloseFavoritesDialogMsg:
		a.showFavorites = false
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.showHelp {
		switch msg.String() {
		case "?", "esc", "q", "ctrl+c":
			a.showHelp = false
		}
		return a, nil
	}
	if a.showFavorites {
		var cmd tea.Cmd
		a.favDialog, cmd = a.favDialog.Update(msg)
		return a, cmd
	}
	if a.mode != inputNone {
		return a.handleInput(msg)
	}

	if a.state.ViewMode == models.ViewSQL {
		return a.handleSQLKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "?":
		a.showHelp = true
		return a, nil
	case "tab":
		if a.focus == focusNav {
			a.focus = focusContent
		} else {
			a.focus = focusNav
		}
		return a, nil
	case "1":
		a.sess.SetViewMode(models.ViewData)
	case "2":
		a.sess.SetViewMode(models.ViewStructure)
	case "3":
		a.sess.SetViewMode(models.ViewSQL)
	case "4":
		a.sess.SetViewMode(models.ViewTableInfo)
	case "5":
		a.sess.SetViewMode(models.ViewQueryHistory)
	case "r":
		a.sess.Refresh()
	case "esc":
		// Re-applying the current mode dismisses a visible error.
		if a.state.Error != "" {
			a.sess.SetViewMode(a.state.ViewMode)
		}
	default:
		if a.focus == focusNav {
			return a.handleNavKey(msg)
		}
		return a.handleContentKey(msg)
	}
	return a, nil
}

func (a *App) handleNavKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := a.navEntries()
	switch msg.String() {
	case "j", "down":
		if a.navCursor < len(entries)-1 {
			a.navCursor++
		}
	case "k", "up":
		if a.navCursor > 0 {
			a.navCursor--
		}
	case "enter":
		if a.navCursor < len(entries) {
			e := entries[a.navCursor]
			if e.isTable {
				if e.dbID != a.state.SelectedDatabase {
					a.sess.SelectDatabase(e.dbID)
				}
				a.sess.SelectTable(e.table)
				a.focus = focusContent
			} else {
				a.sess.SelectDatabase(e.dbID)
			}
		}
	}
	return a, nil
}

func (a *App) handleContentKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		a.tableView.MoveSelection(1)
		a.syncHighlight()
	case "k", "up":
		a.tableView.MoveSelection(-1)
		a.syncHighlight()
	case "h", "left":
		a.tableView.MoveColumn(-1)
	case "l", "right":
		a.tableView.MoveColumn(1)
	case "n", "]":
		if a.state.ViewMode == models.ViewData {
			a.sess.NextPage()
		}
	case "p", "[":
		if a.state.ViewMode == models.ViewData {
			a.sess.PreviousPage()
		}
	case "g":
		if a.state.ViewMode == models.ViewData {
			a.openInput(inputGoToRow, "row number")
		}
	case "o":
		if a.state.ViewMode == models.ViewData {
			if col := a.currentSortKey(); col != "" {
				a.sess.ToggleSort(col)
			}
		}
	case "e":
		if a.state.ViewMode == models.ViewData {
			a.beginCellEdit()
		}
	case "y":
		if cell, ok := a.tableView.SelectedCell(); ok {
			if err := clipboard.WriteAll(cell); err == nil {
				a.statusMsg = "copied"
			}
		}
	case "x":
		if a.state.ViewMode == models.ViewData && a.state.CurrentPage != nil {
			path := fmt.Sprintf("%s-%d.csv", a.state.CurrentPage.Table, a.state.CurrentPage.Start)
			if err := export.PageToCSV(a.state.CurrentPage, path); err != nil {
				a.statusMsg = "export failed: " + err.Error()
			} else {
				a.statusMsg = "exported " + path
			}
		}
	}
	return a, nil
}

func (a *App) handleSQLKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "esc":
		a.sess.SetViewMode(models.ViewData)
		return a, nil
	case "ctrl+e":
		text := a.sqlEditor.Value()
		a.sess.SetQuery(text)
		a.sess.Execute(text)
		return a, nil
	case "ctrl+f":
		a.sess.SetQuery(a.sqlEditor.Value())
		a.sess.ToggleFavorite()
		return a, nil
	case "ctrl+o":
		a.favDialog.SetFavorites(a.state.Favorites)
		a.showFavorites = true
		return a, nil
	default:
		return a, a.sqlEditor.Update(msg)
	}
}

func (a *App) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = inputNone
		return a, nil
	case "enter":
		value := a.input.Value()
		mode := a.mode
		a.mode = inputNone
		switch mode {
		case inputGoToRow:
			if row, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				a.sess.GoToRow(row)
			}
		case inputEditCell:
			edit := rowedit.Edit{}
			if value == "NULL" {
				edit[a.editCol] = nil
			} else {
				edit[a.editCol] = &value
			}
			a.sess.ApplyRowEdit(edit)
		}
		return a, nil
	default:
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
}

func (a *App) openInput(mode inputMode, prompt string) {
	a.mode = mode
	a.input = textinput.New()
	a.input.Prompt = prompt + ": "
	a.input.Focus()
}

func (a *App) beginCellEdit() {
	col := a.tableView.SelectedColumn()
	if col == "" || a.state.CurrentPage == nil {
		return
	}
	// The edit targets the highlighted row; make sure the cursor row is it.
	a.syncHighlight()
	a.editCol = strings.TrimSuffix(strings.TrimSuffix(col, " ▲"), " ▼")
	a.openInput(inputEditCell, a.editCol)
	if cell, ok := a.tableView.SelectedCell(); ok {
		a.input.SetValue(cell)
	}
}

// currentSortKey strips the sort marker off the selected column header.
func (a *App) currentSortKey() string {
	col := a.tableView.SelectedColumn()
	return strings.TrimSuffix(strings.TrimSuffix(col, " ▲"), " ▼")
}

// syncHighlight mirrors the cursor row into the store's highlighted row set,
// which is what the row-edit builder targets.
func (a *App) syncHighlight() {
	if a.state.ViewMode == models.ViewData && a.state.CurrentPage != nil {
		a.sess.HighlightRows([]int{a.tableView.SelectedRow})
	}
}

func (a *App) refreshContent() {
	switch a.state.ViewMode {
	case models.ViewData:
		a.tableView.SetData(present.DataPage(a.state))
	case models.ViewStructure:
		a.tableView.SetData(present.StructureColumns(a.state))
	case models.ViewQueryHistory:
		a.tableView.SetData(present.History(a.state))
	}
	a.tableView.Width = a.contentWidth()
	a.tableView.Height = a.contentHeight()
}

func (a *App) navEntries() []navEntry {
	var entries []navEntry
	for _, db := range a.state.Databases {
		entries = append(entries, navEntry{dbID: db.ID, label: db.Name})
		if db.ID != a.state.SelectedDatabase {
			continue
		}
		for _, t := range db.Tables {
			entries = append(entries, navEntry{
				isTable: true,
				dbID:    db.ID,
				table:   t,
				label:   "  " + t,
			})
		}
	}
	return entries
}

func (a *App) navWidth() int {
	w := a.width / 4
	if w < 20 {
		w = 20
	}
	return w
}

func (a *App) contentWidth() int {
	w := a.width - a.navWidth() - 6
	if w < 20 {
		w = 20
	}
	return w
}

func (a *App) contentHeight() int {
	h := a.height - 6
	if h < 5 {
		h = 5
	}
	return h
}

// View implements tea.Model
func (a *App) View() string {
	if a.width == 0 {
		return "starting dbscope..."
	}
	if a.showHelp {
		return help.Render(a.width, a.height)
	}

	left := components.Panel{
		Title:   "Databases",
		Content: a.renderNav(),
		Width:   a.navWidth(),
		Height:  a.height - 4,
		Focused: a.focus == focusNav,
		Theme:   a.th,
	}
	right := components.Panel{
		Title:   a.contentTitle(),
		Content: a.renderContent(),
		Width:   a.contentWidth() + 2,
		Height:  a.height - 4,
		Focused: a.focus == focusContent,
		Theme:   a.th,
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, left.View(), right.View())
	return body + "\n" + a.renderStatusBar()
}

func (a *App) contentTitle() string {
	title := a.state.ViewMode.String()
	if a.state.SelectedTable != "" {
		title = fmt.Sprintf("%s · %s", a.state.SelectedTable, title)
	}
	return title
}

func (a *App) renderNav() string {
	entries := a.navEntries()
	if len(entries) == 0 {
		return lipgloss.NewStyle().Foreground(a.th.Metadata).Render("(no databases)")
	}
	if a.navCursor >= len(entries) {
		a.navCursor = len(entries) - 1
	}

	var b strings.Builder
	for i, e := range entries {
		line := e.label
		selected := (!e.isTable && e.dbID == a.state.SelectedDatabase) ||
			(e.isTable && e.dbID == a.state.SelectedDatabase && e.table == a.state.SelectedTable)
		style := lipgloss.NewStyle()
		if selected {
			style = style.Foreground(a.th.Info)
		}
		if i == a.navCursor && a.focus == focusNav {
			style = style.Background(a.th.Selection).Bold(true)
		}
		b.WriteString(style.Render(line))
		if i < len(entries)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (a *App) renderContent() string {
	if a.showFavorites {
		return a.favDialog.View()
	}
	if a.mode != inputNone {
		return a.input.View() + "\n\n" + a.renderView()
	}
	return a.renderView()
}

func (a *App) renderView() string {
	switch a.state.ViewMode {
	case models.ViewData, models.ViewQueryHistory:
		return a.tableView.View()
	case models.ViewStructure:
		return a.renderStructure()
	case models.ViewSQL:
		return a.renderSQL()
	case models.ViewTableInfo:
		if a.state.TableInfo == "" {
			return lipgloss.NewStyle().Foreground(a.th.Metadata).Render("loading…")
		}
		return a.state.TableInfo
	default:
		return ""
	}
}

func (a *App) renderStructure() string {
	columns := components.NewTableView(a.th)
	columns.Width = a.contentWidth()
	columns.Height = a.contentHeight() / 2
	columns.SetData(present.StructureColumns(a.state))

	indexes := components.NewTableView(a.th)
	indexes.Width = a.contentWidth()
	indexes.Height = a.contentHeight() - columns.Height - 2
	indexes.SetData(present.StructureIndexes(a.state))

	header := lipgloss.NewStyle().Bold(true).Foreground(a.th.Info)
	return header.Render("Columns") + "\n" + columns.View() + "\n\n" +
		header.Render("Indexes") + "\n" + indexes.View()
}

func (a *App) renderSQL() string {
	result := components.NewTableView(a.th)
	result.Width = a.contentWidth()
	result.Height = a.contentHeight() - 8
	result.SetData(present.QueryResult(a.state))

	var outcome string
	if a.state.QueryResult != nil {
		outcome = fmt.Sprintf("%s · %s", a.state.QueryResult.Kind, a.state.ExecutionTime)
	}
	meta := lipgloss.NewStyle().Foreground(a.th.Metadata).Render(outcome)

	return a.sqlEditor.View() + "\n" + meta + "\n" + result.View()
}

func (a *App) renderStatusBar() string {
	if a.state.Error != "" {
		return lipgloss.NewStyle().
			Foreground(a.th.Error).
			Bold(true).
			Render(" ✗ " + a.state.Error + "  (esc to dismiss)")
	}

	var parts []string
	if db, ok := a.state.DatabaseByID(a.state.SelectedDatabase); ok {
		parts = append(parts, db.Name)
	}
	if a.state.ViewMode == models.ViewData {
		parts = append(parts, present.Status(a.state))
		if a.state.CurrentSort != nil {
			parts = append(parts, "sort: "+a.state.CurrentSort.Key)
		}
	}
	if a.statusMsg != "" {
		parts = append(parts, a.statusMsg)
	}
	parts = append(parts, "1-5 views · tab focus · ? help · q quit")

	return lipgloss.NewStyle().
		Foreground(a.th.Metadata).
		Render(" " + strings.Join(parts, "  │  "))
}
