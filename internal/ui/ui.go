// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a three step workflow:
//  1. [GroupListView] : Browse the source library and toggle which groups move
//  2. [TransferView] : Watch per-group progress while the engine runs
//  3. [ResultView] : Review totals and the items that could not be matched
//
// The [Model] implements bubbletea's standard Init/Update/View pattern.
// Transfer progress is polled on a short tick rather than streamed, since
// each transfer already exposes its own status line.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mtx/internal/library"
	"github.com/desertthunder/mtx/internal/providers"
	"github.com/desertthunder/mtx/internal/transfer"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	GroupListView ViewState = iota
	TransferView
	ResultView
)

const repaintInterval = 200 * time.Millisecond

type libraryFetchedMsg struct {
	root *library.Group
	err  error
}

type groupToggledMsg struct {
	err error
}

type transfersDoneMsg struct{}

type tickMsg time.Time

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	source    providers.Adapter
	engine    *transfer.Engine
	width     int
	height    int
	root      *library.Group
	groupList list.Model
	transfers []*library.Transfer
	done      <-chan struct{}
	spinner   spinner.Model
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model reading from source and pushing
// through engine.
func NewModel(ctx context.Context, source providers.Adapter, engine *transfer.Engine) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = NewStyle("#7D56F4")

	return &Model{
		ctx:     ctx,
		view:    GroupListView,
		source:  source,
		engine:  engine,
		spinner: sp,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the spinner and fetches the source library.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchLibrary())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.groupList.Width() == 0 {
			m.groupList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case GroupListView:
			return m.handleGroupListKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		default:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}

	case libraryFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.root = msg.root
		children := msg.root.Children()
		items := make([]list.Item, len(children))
		for i, g := range children {
			items[i] = groupItem{group: g}
		}
		m.groupList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.groupList.Title = fmt.Sprintf("%s • %s", m.source.Name(), m.root.Name())
		m.groupList.SetSize(m.width-4, m.height-8)
		return m, nil

	case groupToggledMsg:
		m.err = msg.err
		return m, nil

	case tickMsg:
		if m.view == TransferView {
			return m, m.repaint()
		}
		return m, nil

	case transfersDoneMsg:
		m.view = ResultView
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.view == GroupListView {
		var cmd tea.Cmd
		m.groupList, cmd = m.groupList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == GroupListView && m.root == nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case GroupListView:
		return m.renderGroupList()
	case TransferView:
		return m.renderTransfer()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleGroupListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		if selected, ok := m.groupList.SelectedItem().(groupItem); ok {
			return m, m.toggleGroup(selected.group)
		}
	case "enter":
		if m.root == nil || !m.anySelected() {
			return m, nil
		}
		m.view = TransferView
		m.transfers, m.done = m.engine.Run(m.ctx, m.root)
		return m, tea.Batch(m.repaint(), m.waitDone())
	}

	var cmd tea.Cmd
	m.groupList, cmd = m.groupList.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = GroupListView
		m.transfers = nil
		m.done = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) anySelected() bool {
	for _, g := range m.root.Children() {
		if g.Selected() {
			return true
		}
	}
	return false
}

func (m *Model) fetchLibrary() tea.Cmd {
	return func() tea.Msg {
		root, err := m.source.Library(m.ctx)
		if err == nil {
			// Resolve the root's own playlist children before listing.
			err = root.Fetch()
		}
		return libraryFetchedMsg{root: root, err: err}
	}
}

// toggleGroup flips selection in a command since selecting a lazy group
// fetches its items.
func (m *Model) toggleGroup(g *library.Group) tea.Cmd {
	return func() tea.Msg {
		return groupToggledMsg{err: g.Select(!g.Selected())}
	}
}

func (m *Model) repaint() tea.Cmd {
	return tea.Tick(repaintInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) waitDone() tea.Cmd {
	done := m.done
	return func() tea.Msg {
		<-done
		return transfersDoneMsg{}
	}
}

func (m *Model) renderGroupList() string {
	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	return fmt.Sprintf("%s\n\n%s", m.groupList.View(), helpView)
}

func (m *Model) renderTransfer() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Transferring"))
	b.WriteString("\n\n")
	for _, t := range m.transfers {
		fmt.Fprintf(&b, "%s %s: %s\n", m.spinner.View(), t.Name(), t.StatusLine())
	}
	return b.String()
}

func (m *Model) renderResult() string {
	var b strings.Builder
	b.WriteString(styles.ok.Render("Transfer Finished"))
	b.WriteString("\n\n")

	for _, t := range m.transfers {
		fmt.Fprintf(&b, "%s: %s\n", t.Name(), t.StatusLine())
		missing := t.Missing()
		if len(missing) > 0 {
			b.WriteString(styles.warn.Render(fmt.Sprintf("  %d not matched:", len(missing))))
			b.WriteString("\n")
			for _, item := range missing {
				fmt.Fprintf(&b, "  • %s\n", item.Label())
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(styles.help.Render("r restart • q quit"))
	return b.String()
}
