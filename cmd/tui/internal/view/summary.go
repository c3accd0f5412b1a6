package view

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/xuri/excelize/v2"

	"github.com/MrJamesThe3rd/lcrdash/internal/merge"
	"github.com/MrJamesThe3rd/lcrdash/internal/report"
	"github.com/MrJamesThe3rd/lcrdash/internal/snapshot"
)

const summaryColWidth = 14

// ShowHistoryMsg returns from the summary to the history list.
type ShowHistoryMsg struct{}

type loadSummaryMsg struct {
	rows      [][]string
	dateValue string
	err       error
}

// SummaryModel previews the merged region of one stored snapshot.
type SummaryModel struct {
	CommonModel
	snapshots *snapshot.Service
	layout    merge.Layout
	date      string

	table     table.Model
	dateValue string
	rowCount  int
	loading   bool
	err       error
}

func NewSummaryModel(snapshots *snapshot.Service, layout merge.Layout, date string) SummaryModel {
	columns := make([]table.Column, layout.Columns)
	for i := range columns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		columns[i] = table.Column{Title: name, Width: summaryColWidth}
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

	return SummaryModel{
		snapshots: snapshots,
		layout:    layout,
		date:      date,
		table:     t,
		loading:   true,
	}
}

func (m SummaryModel) Title() string {
	if m.date == "" {
		return "Latest snapshot"
	}

	return "Snapshot " + m.date
}

func (m SummaryModel) ShortHelp() string { return "Esc: back to history" }

func (m SummaryModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m SummaryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadSummaryMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.dateValue = msg.dateValue
		m.rowCount = len(msg.rows)

		rows := make([]table.Row, 0, len(msg.rows))
		for _, r := range msg.rows {
			row := make(table.Row, m.layout.Columns)
			copy(row, r)
			rows = append(rows, row)
		}

		m.table.SetRows(rows)

		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-10, 5))
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "esc" {
			return m, func() tea.Msg { return ShowHistoryMsg{} }
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m SummaryModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		path, err := m.path(ctx)
		if err != nil {
			return loadSummaryMsg{err: err}
		}

		f, err := excelize.OpenFile(path)
		if err != nil {
			return loadSummaryMsg{err: fmt.Errorf("failed to open workbook: %w", err)}
		}
		defer f.Close()

		_, startRow, err := excelize.CellNameToCoordinates(m.layout.TargetAnchor)
		if err != nil {
			return loadSummaryMsg{err: err}
		}

		rows, err := merge.ReadFormatted(f, m.layout.TargetSheet)
		if err != nil {
			return loadSummaryMsg{err: err}
		}

		if len(rows) >= startRow {
			rows = rows[startRow-1:]
		} else {
			rows = nil
		}

		dateValue, err := f.GetCellValue(m.layout.TargetSheet, m.layout.DateCell)
		if err != nil {
			return loadSummaryMsg{err: err}
		}

		return loadSummaryMsg{rows: rows, dateValue: dateValue}
	}
}

// path resolves the workbook to preview. An empty date means the latest copy.
func (m SummaryModel) path(ctx context.Context) (string, error) {
	if m.date == "" {
		return m.snapshots.LatestFile(ctx)
	}

	d, err := report.ParseKey(m.date)
	if err != nil {
		return "", err
	}

	return m.snapshots.History(ctx, d)
}

func (m SummaryModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading " + m.Title() + "...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(
			errorText(fmt.Sprintf("%s: %v", report.Code(m.err), m.err)) + "\n\n" + m.ShortHelp(),
		)
	}

	header := fmt.Sprintf("%s  %s!%s = %s  (%d rows)",
		activeStyle(m.Title()), m.layout.TargetSheet, m.layout.DateCell, m.dateValue, m.rowCount)

	return lipgloss.NewStyle().Padding(1).Render(
		header + "\n\n" + m.table.View() + "\n\n" + m.ShortHelp(),
	)
}
