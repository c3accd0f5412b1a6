package view

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/lcrdash/internal/ingest"
	"github.com/MrJamesThe3rd/lcrdash/internal/report"
	"github.com/MrJamesThe3rd/lcrdash/internal/snapshot"
)

type uploadState int

const (
	uploadStatePick uploadState = iota
	uploadStateConfirm
	uploadStateRunning
	uploadStateResult
)

type uploadCheckMsg struct {
	path   string
	exists bool
	date   string
	err    error
}

type uploadDoneMsg struct {
	snap *report.Snapshot
	err  error
}

type UploadModel struct {
	CommonModel
	ingest    *ingest.Service
	snapshots *snapshot.Service

	state      uploadState
	filePicker filepicker.Model
	spinner    spinner.Model
	form       *huh.Form

	path      string
	date      string
	overwrite *bool

	snap *report.Snapshot
	err  error
}

func NewUploadModel(ing *ingest.Service, snapshots *snapshot.Service) UploadModel {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".xlsx"}
	fp.DirAllowed = false
	fp.SetHeight(15)

	if cwd, err := os.Getwd(); err == nil {
		fp.CurrentDirectory = cwd
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return UploadModel{
		ingest:     ing,
		snapshots:  snapshots,
		filePicker: fp,
		spinner:    sp,
	}
}

func (m UploadModel) Title() string { return "Upload Extract" }
func (m UploadModel) ShortHelp() string {
	switch m.state {
	case uploadStateConfirm:
		return "y/n: choose | Esc: cancel"
	case uploadStateRunning:
		return "processing..."
	case uploadStateResult:
		return "Enter: upload another | Esc: back"
	}

	return "Enter: select file | Esc: back"
}

func (m UploadModel) Init() tea.Cmd {
	return m.filePicker.Init()
}

func (m UploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m.handleEsc()
		case "enter":
			if m.state == uploadStateResult {
				return m.reset()
			}
		}

	case uploadCheckMsg:
		if msg.err != nil {
			m.state = uploadStateResult
			m.err = msg.err

			return m, nil
		}

		m.path = msg.path
		m.date = msg.date

		if !msg.exists {
			return m.start()
		}

		m.state = uploadStateConfirm
		m.overwrite = new(false)
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("A snapshot for %s already exists.", msg.date)).
					Description("Uploading replaces it in history. Continue?").
					Affirmative("Replace").
					Negative("Cancel").
					Value(m.overwrite),
			),
		).WithWidth(60).WithShowHelp(false)

		return m, m.form.Init()

	case uploadDoneMsg:
		m.state = uploadStateResult
		m.snap = msg.snap
		m.err = msg.err

		return m, nil

	case spinner.TickMsg:
		if m.state != uploadStateRunning {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	switch m.state {
	case uploadStatePick:
		return m.updatePick(msg)
	case uploadStateConfirm:
		return m.updateConfirm(msg)
	}

	return m, nil
}

func (m UploadModel) updatePick(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		return m, m.checkCmd(path)
	}

	return m, cmd
}

func (m UploadModel) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if !*m.overwrite {
		return m.reset()
	}

	return m.start()
}

func (m UploadModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case uploadStateConfirm, uploadStateResult:
		return m.reset()
	case uploadStateRunning:
		return m, nil
	}

	return m, Back
}

func (m UploadModel) reset() (tea.Model, tea.Cmd) {
	m.state = uploadStatePick
	m.form = nil
	m.snap = nil
	m.err = nil
	m.path = ""
	m.date = ""

	return m, m.filePicker.Init()
}

func (m UploadModel) start() (tea.Model, tea.Cmd) {
	m.state = uploadStateRunning
	m.form = nil

	return m, tea.Batch(m.spinner.Tick, m.ingestCmd(m.path))
}

// checkCmd looks up whether the date in the file name already has a snapshot.
// Names without a date go straight through so the service archives and reports them.
func (m UploadModel) checkCmd(path string) tea.Cmd {
	return func() tea.Msg {
		date, err := report.ParseFilenameDate(filepath.Base(path))
		if err != nil {
			return uploadCheckMsg{path: path}
		}

		ctx, cancel := OpCtx()
		defer cancel()

		v, err := m.snapshots.View(ctx, report.Key(date))
		if err != nil {
			return uploadCheckMsg{err: err}
		}

		return uploadCheckMsg{path: path, date: report.Key(date), exists: v.Exists}
	}
}

func (m UploadModel) ingestCmd(path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return uploadDoneMsg{err: fmt.Errorf("failed to open file: %w", err)}
		}
		defer f.Close()

		snap, err := m.ingest.Ingest(context.Background(), f, filepath.Base(path))

		return uploadDoneMsg{snap: snap, err: err}
	}
}

func (m UploadModel) View() string {
	switch m.state {
	case uploadStateConfirm:
		return lipgloss.NewStyle().Padding(1).Render(m.form.View())
	case uploadStateRunning:
		return lipgloss.NewStyle().Padding(2).Render(
			fmt.Sprintf("%s Merging %s...", m.spinner.View(), filepath.Base(m.path)),
		)
	case uploadStateResult:
		return lipgloss.NewStyle().Padding(2).Render(m.viewResult())
	}

	return lipgloss.NewStyle().Padding(1).Render(
		"Pick the daily LCR extract (.xlsx):\n\n" + m.filePicker.View(),
	)
}

func (m UploadModel) viewResult() string {
	var b strings.Builder

	if m.err != nil {
		b.WriteString(errorText(fmt.Sprintf("%s: %v", report.Code(m.err), m.err)))
		b.WriteString("\n")

		var perr *ingest.ProcessError
		if errors.As(m.err, &perr) && perr.Stored {
			fmt.Fprintf(&b, "\nThe upload was archived as %s.\n", perr.StoredName)
		}

		b.WriteString("\nEnter: try again | Esc: back")

		return b.String()
	}

	b.WriteString(successText(fmt.Sprintf("Snapshot %s updated.", m.snap.Date)))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "File:     %s\n", m.snap.Filename)
	fmt.Fprintf(&b, "Stored:   %s\n", m.snap.StoredName)
	fmt.Fprintf(&b, "Rows:     %d\n", m.snap.Rows)
	fmt.Fprintf(&b, "Recalc:   %s\n", m.snap.Mode)
	fmt.Fprintf(&b, "Uploaded: %s\n", FormatTime(m.snap.UploadedAt))

	for _, w := range m.snap.Warnings {
		fmt.Fprintf(&b, "\n%s", activeStyle("warning: "+w))
	}

	b.WriteString("\n\nEnter: upload another | Esc: back")

	return b.String()
}
