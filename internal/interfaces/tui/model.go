// Package tui is a terminal client for the todo API. Every mutation is shown
// optimistically, sent, and then reconciled against a fresh list.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"todoapp/internal/domain/todo"
	"todoapp/internal/domain/view"
	"todoapp/internal/infrastructure/todoapi"
)

type (
	// listMsg carries a fetched list.
	listMsg struct {
		seq   uint64
		items []*todo.Todo
		err   error
	}
	// resultMsg carries a settled mutation.
	resultMsg struct {
		view.Result
		seq uint64
	}
	// watchMsg is an invalidation pushed by the server.
	watchMsg struct{ todoapi.WatchEvent }
	watchClosedMsg struct{}
)

type Model struct {
	ctx     context.Context
	backend view.Backend
	tracker *view.Tracker
	events  <-chan todoapi.WatchEvent
	order   *fetchOrder

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	input   textinput.Model

	cursor   int
	adding   bool
	loaded   bool
	fetchErr error
	live     bool
}

// New creates the model. events may be nil when no watch stream is available.
func New(ctx context.Context, backend view.Backend, events <-chan todoapi.WatchEvent) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "What needs doing?"
	ti.CharLimit = 500

	return Model{
		ctx:     ctx,
		backend: backend,
		tracker: view.NewTracker(nil),
		events:  events,
		order:   &fetchOrder{},
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(pendingStyle)),
		input:   ti,
		live:    events != nil,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.spinner.Tick, m.waitForEvent())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case listMsg:
		if msg.err != nil {
			m.fetchErr = msg.err
			return m, nil
		}
		if !m.order.accept(msg.seq) {
			return m, nil
		}
		m.fetchErr = nil
		m.loaded = true
		m.tracker.Replace(msg.items)
		m.clampCursor()
		return m, nil

	case resultMsg:
		r := msg.Result
		if r.Fresh != nil && r.RefreshErr == nil && !m.order.accept(msg.seq) {
			// a newer list is already showing; settle against it
			r.Fresh = nil
		}
		m.tracker.Apply(r)
		if msg.RefreshErr == nil {
			m.loaded = true
		}
		m.clampCursor()
		return m, nil

	case watchMsg:
		return m, tea.Batch(m.fetch(), m.waitForEvent())

	case watchClosedMsg:
		m.live = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.adding {
			return m.updateAdding(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateAdding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		text := m.input.Value()
		m.input.Reset()
		m.input.Blur()
		m.adding = false

		normalized, err := m.tracker.BeginAdd(text)
		if err != nil {
			return m, nil
		}
		return m, m.performAdd(normalized)

	case key.Matches(msg, m.keys.Cancel):
		m.input.Reset()
		m.input.Blur()
		m.adding = false
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.tracker.Rows())-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		row, ok := m.selected()
		if !ok || !m.tracker.BeginToggle(row.ID) {
			return m, nil
		}
		return m, m.perform(view.Key{ID: row.ID, Action: view.ActionToggle})

	case key.Matches(msg, m.keys.Delete):
		row, ok := m.selected()
		if !ok || !m.tracker.BeginDelete(row.ID) {
			return m, nil
		}
		m.clampCursor()
		return m, m.perform(view.Key{ID: row.ID, Action: view.ActionDelete})

	case key.Matches(msg, m.keys.Add):
		m.adding = true
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetch()

	case key.Matches(msg, m.keys.Dismiss):
		m.tracker.ClearErr()
		m.fetchErr = nil
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	rows := m.tracker.Rows()
	done := 0
	for _, r := range rows {
		if r.Completed {
			done++
		}
	}
	header := fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render("Todos"),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), len(rows)-done,
		accentStyle.Render("Total"), len(rows),
	)
	if m.live {
		header += "  " + mutedStyle.Render("live")
	}
	b.WriteString(header + "\n\n")

	switch {
	case !m.loaded && m.fetchErr == nil:
		b.WriteString(mutedStyle.Render("loading...") + "\n")
	case len(rows) == 0:
		b.WriteString(mutedStyle.Render("Nothing to do.") + "\n")
	}

	for i, r := range rows {
		b.WriteString(m.renderRow(i, r) + "\n")
	}

	if m.adding {
		b.WriteString("\n" + panelStyle.Render("Add new item\n"+m.input.View()) + "\n")
	} else if m.tracker.Adding() {
		b.WriteString("\n" + m.spinner.View() + " " + mutedStyle.Render("adding...") + "\n")
	}

	if err := m.statusErr(); err != nil {
		b.WriteString("\n" + errorStyle.Render("✖ "+err.Error()) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return panelStyle.Render(b.String())
}

func (m Model) renderRow(i int, r view.Row) string {
	box := mutedStyle.Render(boxUnchecked)
	text := r.Text
	if r.Completed {
		box = successStyle.Render(boxChecked)
		text = doneStyle.Render(text)
	}

	prefix := "  "
	if i == m.cursor {
		prefix = selectedStyle.Render("> ")
	}

	line := prefix + box + " " + text
	if r.Pending {
		line += " " + m.spinner.View()
	}
	return line
}

func (m Model) statusErr() error {
	if err := m.tracker.Err(); err != nil {
		return err
	}
	return m.fetchErr
}

func (m Model) selected() (view.Row, bool) {
	rows := m.tracker.Rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return view.Row{}, false
	}
	return rows[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.tracker.Rows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Tracker exposes the view state, mainly for tests.
func (m Model) Tracker() *view.Tracker {
	return m.tracker
}

// fetchOrder numbers the list reads in the order they were issued. A read
// that was issued before the last applied list is stale and gets dropped.
type fetchOrder struct {
	issued  uint64
	applied uint64
}

func (o *fetchOrder) next() uint64 {
	o.issued++
	return o.issued
}

func (o *fetchOrder) accept(seq uint64) bool {
	if seq < o.applied {
		return false
	}
	o.applied = seq
	return true
}

func (m Model) fetch() tea.Cmd {
	ctx, backend := m.ctx, m.backend
	seq := m.order.next()
	return func() tea.Msg {
		items, err := backend.List(ctx)
		return listMsg{seq: seq, items: items, err: err}
	}
}

// perform moves key to Reconciling and returns the command that sends it.
func (m Model) perform(k view.Key) tea.Cmd {
	m.tracker.Dispatch(k)
	ctx, backend := m.ctx, m.backend
	seq := m.order.next()
	return func() tea.Msg {
		return resultMsg{Result: view.Perform(ctx, backend, k), seq: seq}
	}
}

func (m Model) performAdd(text string) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	seq := m.order.next()
	return func() tea.Msg {
		return resultMsg{Result: view.PerformAdd(ctx, backend, text), seq: seq}
	}
}

func (m Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return watchClosedMsg{}
		}
		return watchMsg{ev}
	}
}
