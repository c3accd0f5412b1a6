package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/lcrdash/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/lcrdash/internal/app"
	"github.com/MrJamesThe3rd/lcrdash/internal/config"
	"github.com/MrJamesThe3rd/lcrdash/internal/logging"
)

type model struct {
	app *app.App

	currentView View

	uploadView  view.UploadModel
	historyView view.HistoryModel
	summaryView view.SummaryModel

	width  int
	height int
}

type View int

const (
	ViewMenu    View = 0
	ViewUpload  View = 1
	ViewHistory View = 2
	ViewSummary View = 3
)

func initialModel(a *app.App) model {
	return model{
		app:         a,
		currentView: ViewMenu,
		uploadView:  view.NewUploadModel(a.Ingest, a.Snapshots),
		historyView: view.NewHistoryModel(a.Snapshots),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewUpload
				m.uploadView = view.NewUploadModel(m.app.Ingest, m.app.Snapshots)

				return m, m.uploadView.Init()
			case "2":
				return m.openHistory()
			case "3":
				m.currentView = ViewSummary
				m.summaryView = view.NewSummaryModel(m.app.Snapshots, m.app.Engine.Layout(), "")

				return m, m.summaryView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	case view.PreviewMsg:
		m.currentView = ViewSummary
		m.summaryView = view.NewSummaryModel(m.app.Snapshots, m.app.Engine.Layout(), msg.Date)

		return m, m.summaryView.Init()
	case view.ShowHistoryMsg:
		return m.openHistory()
	}

	switch m.currentView {
	case ViewUpload:
		var newModel tea.Model
		newModel, cmd = m.uploadView.Update(msg)
		m.uploadView = newModel.(view.UploadModel)
	case ViewHistory:
		var newModel tea.Model
		newModel, cmd = m.historyView.Update(msg)
		m.historyView = newModel.(view.HistoryModel)
	case ViewSummary:
		var newModel tea.Model
		newModel, cmd = m.summaryView.Update(msg)
		m.summaryView = newModel.(view.SummaryModel)
	}

	return m, cmd
}

func (m model) openHistory() (tea.Model, tea.Cmd) {
	m.currentView = ViewHistory
	m.historyView = view.NewHistoryModel(m.app.Snapshots)

	return m, m.historyView.Init()
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			m.app.Config.App.Name + "\n\n" +
				"1. Upload Extract\n" +
				"2. Snapshot History\n" +
				"3. Latest Snapshot\n\n" +
				"q. Quit",
		)
	case ViewUpload:
		return m.uploadView.View()
	case ViewHistory:
		return m.historyView.View()
	case ViewSummary:
		return m.summaryView.View()
	}

	return "Unknown View"
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data dir: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		OutputPath: filepath.Join(cfg.Data.Dir, "tui.log"),
		Fields:     map[string]string{"service": "tui"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(a), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("failed to run TUI", zap.Error(err))
		os.Exit(1)
	}
}
