package tui

import (
	"time"

	"ipreporter/internal/analysis"
	"ipreporter/internal/browser"
	"ipreporter/internal/log"
	"ipreporter/internal/models"
	"ipreporter/internal/reporting"
	"ipreporter/internal/session"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// Session is the capture lifecycle the UI toggles.
type Session interface {
	Start() (bool, error)
	Stop() bool
	State() session.State
	Stats() *analysis.CaptureStats
}

// Snapshotter provides the full record history for export.
type Snapshotter interface {
	Snapshot() []models.Record
}

// Drainer hands over records matched since the last call.
type Drainer interface {
	Drain() []models.Record
}

// TickMsg drives the periodic drain and stats refresh.
type TickMsg time.Time

type startedMsg struct {
	started bool
	err     error
}

type exportedMsg struct {
	path string
	err  error
}

type openedMsg struct {
	url string
	err error
}

// ReporterModel is the bubbletea model listing reported devices.
type ReporterModel struct {
	session    Session
	records    Snapshotter
	dispatcher Drainer

	table     table.Model
	input     textinput.Model
	exporting bool

	sourceName   string
	exportPath   string
	exportFormat string
	refresh      time.Duration
	openURL      func(string) error
	log          logrus.FieldLogger

	state  session.State
	status string
	errMsg string

	counters analysis.Counters
	fps      float64
	mps      float64
	distinct int
	top      []analysis.SenderStat
}

// Option customizes a ReporterModel.
type Option func(*ReporterModel)

// WithSourceName sets the capture source shown in the header.
func WithSourceName(name string) Option {
	return func(m *ReporterModel) { m.sourceName = name }
}

// WithExport sets the path the export prompt starts from and the format used
// when the path has no recognised extension.
func WithExport(path, format string) Option {
	return func(m *ReporterModel) {
		m.exportPath = path
		m.exportFormat = format
	}
}

// WithRefresh sets how often records are drained and stats redrawn.
func WithRefresh(d time.Duration) Option {
	return func(m *ReporterModel) { m.refresh = d }
}

// WithBrowser replaces the function used to open a device's web page.
func WithBrowser(open func(url string) error) Option {
	return func(m *ReporterModel) { m.openURL = open }
}

// WithLogger overrides the global logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *ReporterModel) { m.log = l }
}

// NewReporterModel builds the UI around a session and the record store it fills.
func NewReporterModel(s Session, records Snapshotter, d Drainer, opts ...Option) ReporterModel {
	columns := []table.Column{
		{Title: "IP Address", Width: 20},
		{Title: "MAC Address", Width: 20},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	st := table.DefaultStyles()
	st.Header = st.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	st.Selected = st.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(st)

	ti := textinput.New()
	ti.Prompt = "Export to: "
	ti.Placeholder = "ip_report.txt"
	ti.CharLimit = 256
	ti.Width = 40

	m := ReporterModel{
		session:      s,
		records:      records,
		dispatcher:   d,
		table:        t,
		input:        ti,
		exportPath:   "ip_report.txt",
		exportFormat: reporting.FormatText,
		refresh:      250 * time.Millisecond,
		openURL:      browser.Open,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.log == nil {
		m.log = log.GetLogger().WithField("component", "tui")
	}

	m.state = s.State()
	m.status = statusText(m.state)
	return m
}

func (m ReporterModel) Init() tea.Cmd {
	return m.tickCmd()
}

func (m ReporterModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func statusText(s session.State) string {
	if s == session.Listening {
		return "Listening..."
	}
	return "Stopped"
}
