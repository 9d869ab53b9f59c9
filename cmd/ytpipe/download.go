package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/app"
	"github.com/yourusername/ytpipe-go/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))
)

var downloadCmd = &cobra.Command{
	Use:   "download [url]",
	Short: "Download a URL in the foreground",
	Long: `Download a URL in the foreground and show its progress.
Press ctrl+c to stop; the tool processes are terminated before ytpipe exits.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().Bool("plain", false, "Print progress as plain lines instead of the interactive display")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	plain, _ := cmd.Flags().GetBool("plain")

	log, err := newLogger(config, !plain)
	if err != nil {
		return err
	}
	defer log.Sync()

	url := args[0]
	if plain {
		return downloadPlain(config, url, log)
	}

	var a *app.App
	model := newDownloadModel(url,
		func() error { return a.Session.Download(url) },
		func() { a.Session.StopDownload() },
	)
	p := tea.NewProgram(model)

	a, err = app.New(config, log, app.SessionCallbacks{
		OnProgress: func(ev domain.ProgressEvent) { p.Send(progressMsg(ev)) },
		OnFinish:   func(r *domain.SessionResult) { p.Send(doneMsg{result: r}) },
	})
	if err != nil {
		return err
	}
	defer closeApp(a)

	final, err := p.Run()
	if err != nil {
		a.Session.StopDownload()
		return fmt.Errorf("display failed: %w", err)
	}

	m := final.(downloadModel)
	if m.err != nil {
		return m.err
	}
	return resultError(m.result)
}

// downloadPlain runs without a terminal UI; SIGINT and SIGTERM stop the download
func downloadPlain(config *domain.Config, url string, log *zap.Logger) error {
	var last string
	a, err := app.New(config, log, app.SessionCallbacks{
		OnProgress: func(ev domain.ProgressEvent) {
			if !ev.Visible || ev.Message == last {
				return
			}
			last = ev.Message
			fmt.Println(ev.Message)
		},
	})
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Session.Download(url); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		a.Session.StopDownload()
	}()

	result, err := a.Session.Wait(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(renderResult(result))
	return resultError(result)
}

func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Close(ctx)
}

// resultError maps a non-successful result to the command's error
func resultError(result *domain.SessionResult) error {
	if result == nil || result.Succeeded() {
		return nil
	}
	if result.Err != nil {
		return result.Err
	}
	return errors.New(string(result.State))
}

type (
	// progressMsg carries a session progress event into the program
	progressMsg domain.ProgressEvent

	// doneMsg ends the program with the session result or a start error
	doneMsg struct {
		result *domain.SessionResult
		err    error
	}
)

// downloadModel is the Bubble Tea model of the foreground download
type downloadModel struct {
	url        string
	start      func() error
	stop       func()
	event      domain.ProgressEvent
	progress   progress.Model
	spinner    spinner.Model
	cancelling bool
	done       bool
	result     *domain.SessionResult
	err        error
}

func newDownloadModel(url string, start func() error, stop func()) downloadModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	return downloadModel{
		url:      url,
		start:    start,
		stop:     stop,
		progress: prog,
		spinner:  sp,
	}
}

// Init starts the download
func (m downloadModel) Init() tea.Cmd {
	start := m.start
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		if err := start(); err != nil {
			return doneMsg{err: err}
		}
		return nil
	})
}

// Update handles messages and updates the model
func (m downloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			if m.done {
				return m, tea.Quit
			}
			if !m.cancelling {
				m.cancelling = true
				m.stop()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - 40
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case progressMsg:
		m.event = domain.ProgressEvent(msg)
		return m, nil

	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI
func (m downloadModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ytpipe"))
	b.WriteString(" ")
	b.WriteString(dimStyle.Render(m.url))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(errorStyle.Render("✗ " + m.err.Error()))
	case m.done:
		b.WriteString(renderResult(m.result))
	case m.event.Visible && !m.event.Indeterminate():
		b.WriteString(m.progress.ViewAs(m.event.Progress))
		b.WriteString(" ")
		b.WriteString(subtitleStyle.Render(m.event.Message))
	default:
		message := m.event.Message
		if message == "" {
			message = "Starting..."
		}
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(subtitleStyle.Render(message))
	}
	b.WriteString("\n")

	if !m.done {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("ctrl+c: stop"))
		b.WriteString("\n")
	}
	return b.String()
}

// renderResult formats a terminal result for the terminal
func renderResult(result *domain.SessionResult) string {
	if result == nil {
		return warningStyle.Render("No download was started")
	}
	elapsed := domain.FormatElapsed(result.Elapsed)
	switch result.State {
	case domain.StateSucceeded:
		where := result.OutputPath
		if where == "" {
			where = "download directory"
		}
		return successStyle.Render(fmt.Sprintf("✓ Downloaded to %s in %s", where, elapsed))
	case domain.StateCancelled:
		return warningStyle.Render(fmt.Sprintf("■ Cancelled after %s", elapsed))
	default:
		return errorStyle.Render(fmt.Sprintf("✗ Failed after %s: %s", elapsed, result.ErrorMessage()))
	}
}
