package view

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/lcrdash/internal/report"
	"github.com/MrJamesThe3rd/lcrdash/internal/snapshot"
)

type historyState int

const (
	historyStateBrowse historyState = iota
	historyStateExport
)

// PreviewMsg asks the shell to open the summary for Date.
type PreviewMsg struct {
	Date string
}

type loadHistoryMsg struct {
	views  []*snapshot.View
	latest string
	err    error
}

type exportDoneMsg struct {
	path string
	err  error
}

type HistoryModel struct {
	CommonModel
	snapshots *snapshot.Service

	state  historyState
	table  table.Model
	views  []*snapshot.View
	latest string
	form   *huh.Form

	exportDir *string
	loading   bool
	err       error
	status    string
}

func NewHistoryModel(snapshots *snapshot.Service) HistoryModel {
	columns := []table.Column{
		{Title: " ", Width: 2},
		{Title: "Date", Width: 12},
		{Title: "File", Width: 36},
		{Title: "Uploaded", Width: 17},
		{Title: "Rows", Width: 6},
		{Title: "Recalc", Width: 15},
		{Title: "Hash", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return HistoryModel{
		snapshots: snapshots,
		table:     t,
		loading:   true,
	}
}

func (m HistoryModel) Title() string { return "Snapshot History" }
func (m HistoryModel) ShortHelp() string {
	if m.state == historyStateExport {
		return "Enter: copy | Esc: cancel"
	}

	return "Esc: back | Enter/p: preview | x: copy workbook | r: refresh"
}

func (m HistoryModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadHistoryMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.views = msg.views
		m.latest = msg.latest
		m.refreshTable()

		return m, nil

	case exportDoneMsg:
		m.state = historyStateBrowse
		m.form = nil
		m.table.Focus()

		if msg.err != nil {
			m.status = errorText(fmt.Sprintf("Copy failed: %v", msg.err))
			return m, nil
		}

		m.status = successText("Copied to " + msg.path)

		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-10, 5))
		return m, nil
	}

	switch m.state {
	case historyStateBrowse:
		return m.updateBrowse(msg)
	case historyStateExport:
		return m.updateExport(msg)
	}

	return m, nil
}

func (m HistoryModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			m.status = ""

			return m, m.loadCmd()
		case "enter", "p":
			if v := m.selected(); v != nil {
				return m, func() tea.Msg { return PreviewMsg{Date: *v.Date} }
			}

			return m, nil
		case "x":
			return m.enterExport()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m HistoryModel) enterExport() (tea.Model, tea.Cmd) {
	if m.selected() == nil {
		return m, nil
	}

	if m.exportDir == nil {
		m.exportDir = new(string)
		if home, err := os.UserHomeDir(); err == nil {
			*m.exportDir = filepath.Join(home, "Downloads")
		}
	}

	m.state = historyStateExport
	m.status = ""
	m.table.Blur()
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Copy workbook to directory").
				Value(m.exportDir).
				Validate(func(s string) error {
					info, err := os.Stat(s)
					if err != nil {
						return err
					}

					if !info.IsDir() {
						return fmt.Errorf("%s is not a directory", s)
					}

					return nil
				}),
		),
	).WithWidth(60).WithShowHelp(false)

	return m, m.form.Init()
}

func (m HistoryModel) updateExport(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "esc" {
		m.state = historyStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.exportCmd(*m.selected().Date, *m.exportDir)
	}

	return m, cmd
}

func (m HistoryModel) selected() *snapshot.View {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.views) {
		return nil
	}

	return m.views[idx]
}

func (m *HistoryModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.views))

	for _, v := range m.views {
		marker := ""
		if *v.Date == m.latest {
			marker = "*"
		}

		rows = append(rows, table.Row{
			marker,
			*v.Date,
			deref(v.Filename, "-"),
			formatUploaded(v),
			formatRows(v),
			deref(v.Mode, "-"),
			shortHash(deref(v.ContentHash, "")),
		})
	}

	m.table.SetRows(rows)
}

func (m HistoryModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		dates, err := m.snapshots.Dates(ctx)
		if err != nil {
			return loadHistoryMsg{err: err}
		}

		views := make([]*snapshot.View, 0, len(dates.Dates))

		for _, d := range slices.Backward(dates.Dates) {
			v, err := m.snapshots.View(ctx, d)
			if err != nil {
				return loadHistoryMsg{err: err}
			}

			if v.Date != nil {
				views = append(views, v)
			}
		}

		return loadHistoryMsg{views: views, latest: deref(dates.LatestDate, "")}
	}
}

func (m HistoryModel) exportCmd(date, dir string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		d, err := report.ParseKey(date)
		if err != nil {
			return exportDoneMsg{err: err}
		}

		src, err := m.snapshots.History(ctx, d)
		if err != nil {
			return exportDoneMsg{err: err}
		}

		dst := filepath.Join(dir, "LCR_"+date+".xlsx")
		if err := copyFile(src, dst); err != nil {
			return exportDoneMsg{err: err}
		}

		return exportDoneMsg{path: dst}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

func (m HistoryModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading history...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorText(fmt.Sprintf("Error: %v", m.err)) + "\n\nr: retry | Esc: back")
	}

	if len(m.views) == 0 {
		return lipgloss.NewStyle().Padding(2).Render("No snapshots yet. Upload an extract first.\n\nEsc: back")
	}

	body := m.table.View()
	if m.state == historyStateExport {
		body += "\n\n" + m.form.View()
	}

	if m.status != "" {
		body += "\n\n" + m.status
	}

	body += "\n\n" + m.ShortHelp()

	return lipgloss.NewStyle().Padding(1).Render(body)
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}

	return *s
}

func formatUploaded(v *snapshot.View) string {
	if v.UploadedAt == nil {
		return "-"
	}

	return FormatTime(*v.UploadedAt)
}

func formatRows(v *snapshot.View) string {
	if v.Rows == nil {
		return "-"
	}

	return fmt.Sprintf("%d", *v.Rows)
}

func shortHash(h string) string {
	if len(h) <= 10 {
		return h
	}

	return h[:10]
}
