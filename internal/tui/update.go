package tui

import (
	"strings"

	"ipreporter/internal/reporting"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

func (m ReporterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.exporting {
			return m.updateExportPrompt(msg)
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			return m.toggle()
		case "e":
			m.exporting = true
			m.errMsg = ""
			m.input.SetValue(m.exportPath)
			m.input.CursorEnd()
			return m, m.input.Focus()
		case "enter":
			return m, m.openSelected()
		}

	case TickMsg:
		m.refreshFromSession()
		return m, m.tickCmd()

	case startedMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		}
		m.state = m.session.State()
		m.status = statusText(m.state)
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			m.log.WithError(msg.err).WithField("path", msg.path).Error("Export failed")
			return m, nil
		}
		m.exportPath = msg.path
		m.status = "Data exported."
		m.log.WithField("path", msg.path).Info("Records exported")
		return m, nil

	case openedMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			m.log.WithError(msg.err).WithField("url", msg.url).Warn("Failed to open browser")
		}
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m ReporterModel) toggle() (tea.Model, tea.Cmd) {
	m.errMsg = ""
	if m.session.Stop() {
		m.state = m.session.State()
		m.status = statusText(m.state)
		return m, nil
	}

	// Start may wait for the previous loop's last read, so run it off the UI goroutine.
	s := m.session
	return m, func() tea.Msg {
		started, err := s.Start()
		return startedMsg{started: started, err: err}
	}
}

func (m ReporterModel) updateExportPrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.exporting = false
		m.input.Blur()
		return m, nil
	case "enter":
		m.exporting = false
		m.input.Blur()

		path := strings.TrimSpace(m.input.Value())
		if path == "" {
			path = m.exportPath
		}
		format := reporting.FormatFromPath(path, m.exportFormat)
		records := m.records.Snapshot()
		return m, func() tea.Msg {
			return exportedMsg{path: path, err: reporting.Export(path, records, format)}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ReporterModel) openSelected() tea.Cmd {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return nil
	}
	url := reporting.DeviceURL(row[0])
	open := m.openURL
	return func() tea.Msg {
		return openedMsg{url: url, err: open(url)}
	}
}

func (m *ReporterModel) refreshFromSession() {
	if fresh := m.dispatcher.Drain(); len(fresh) > 0 {
		rows := m.table.Rows()
		for _, rec := range fresh {
			rows = append(rows, table.Row{rec.SourceIP, rec.SourceMAC})
		}
		m.table.SetRows(rows)
	}

	// The loop stops on its own when a replay runs out.
	if st := m.session.State(); st != m.state {
		m.state = st
		m.status = statusText(st)
	}

	stats := m.session.Stats()
	m.counters = stats.Counters()
	m.fps, m.mps = stats.GetRates()
	m.distinct = stats.DistinctSenders()
	m.top = stats.GetTopSenders(5)
}
