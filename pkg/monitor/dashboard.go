package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultRefresh is the dashboard poll interval.
const DefaultRefresh = time.Second

const barWidth = 30

// FetchFunc returns the current status.
type FetchFunc func(ctx context.Context) (Status, error)

// HTTPFetcher polls GET baseURL/status.
func HTTPFetcher(client *http.Client, baseURL string) FetchFunc {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	url := strings.TrimRight(baseURL, "/") + "/status"
	return func(ctx context.Context) (Status, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return Status{}, fmt.Errorf("build status request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return Status{}, fmt.Errorf("fetch status: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return Status{}, fmt.Errorf("fetch status: unexpected status %d", resp.StatusCode)
		}
		var st Status
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			return Status{}, fmt.Errorf("decode status: %w", err)
		}
		return st, nil
	}
}

type statusMsg struct {
	status Status
	err    error
}

type tickMsg time.Time

// Dashboard is the bubbletea model of the token usage monitor.
type Dashboard struct {
	ctx      context.Context //nolint:containedctx // bubbletea commands cannot take a context
	fetch    FetchFunc
	interval time.Duration
	status   Status
	err      error
	loaded   bool
	width    int

	bar     progress.Model
	barWarn progress.Model

	titleStyle lipgloss.Style
	labelStyle lipgloss.Style
	valueStyle lipgloss.Style
	errorStyle lipgloss.Style
	helpStyle  lipgloss.Style
}

// NewDashboard creates a dashboard polling fetch every interval.
func NewDashboard(ctx context.Context, fetch FetchFunc, interval time.Duration) *Dashboard {
	if interval <= 0 {
		interval = DefaultRefresh
	}
	return &Dashboard{
		ctx:      ctx,
		fetch:    fetch,
		interval: interval,
		width:    80,

		bar:     progress.New(progress.WithSolidFill("34"), progress.WithWidth(barWidth)),
		barWarn: progress.New(progress.WithSolidFill("214"), progress.WithWidth(barWidth)),

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),
		labelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14),
		valueStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true),
		errorStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		helpStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true),
	}
}

func (d *Dashboard) poll() tea.Cmd {
	return func() tea.Msg {
		st, err := d.fetch(d.ctx)
		return statusMsg{status: st, err: err}
	}
}

// Init implements tea.Model.
func (d *Dashboard) Init() tea.Cmd {
	return d.poll()
}

// Update implements tea.Model.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return d, tea.Quit
		case "r":
			return d, d.poll()
		}

	case tea.WindowSizeMsg:
		d.width = msg.Width
		width := barWidth
		if msg.Width < 80 {
			width = max(msg.Width/3, 10)
		}
		d.bar.Width, d.barWarn.Width = width, width

	case statusMsg:
		d.err = msg.err
		if msg.err == nil {
			d.status = msg.status
			d.loaded = true
		}
		return d, tea.Tick(d.interval, func(t time.Time) tea.Msg { return tickMsg(t) })

	case tickMsg:
		return d, d.poll()
	}
	return d, nil
}

// View implements tea.Model.
func (d *Dashboard) View() string {
	var b strings.Builder
	b.WriteString(d.titleStyle.Render("Token Usage Monitor"))
	b.WriteString("\n")

	switch {
	case !d.loaded && d.err == nil:
		b.WriteString("Waiting for status...\n")
	case len(d.status.Models) == 0:
		b.WriteString("No models registered.\n")
	}

	for _, m := range d.status.Models {
		b.WriteString(d.valueStyle.Render(m.Model))
		b.WriteString("\n")
		b.WriteString(d.row("Tokens/min", usage(m.MinuteTokens, m.TokensPerMinute)))
		if m.TokensPerMinute > 0 {
			b.WriteString(d.usageBar(float64(m.MinuteTokens) / float64(m.TokensPerMinute)))
		}
		b.WriteString("\n")
		b.WriteString(d.row("Requests/day", usage(m.DayRequests, m.RequestsPerDay)))
		b.WriteString("\n")
		b.WriteString(d.row("Total", fmt.Sprintf("%d tokens, %d requests", m.TotalTokens, m.TotalRequests)))
		b.WriteString("\n\n")
	}

	if last := d.status.Last; last != nil {
		b.WriteString(d.row("Provider", fmt.Sprintf("%s: %d/%d tokens remaining, resets in %.2fs",
			last.Model, last.Remaining, last.Limit, last.ResetSeconds)))
		b.WriteString("\n")
	}
	if d.err != nil {
		b.WriteString(d.errorStyle.Render("Error: " + d.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(d.helpStyle.Render("r refresh, q quit"))
	b.WriteString("\n")
	return b.String()
}

func (d *Dashboard) row(label, value string) string {
	return d.labelStyle.Render(label) + " " + value
}

func (d *Dashboard) usageBar(ratio float64) string {
	ratio = min(max(ratio, 0), 1)
	if ratio > 0.9 {
		return "  " + d.barWarn.ViewAs(ratio)
	}
	return "  " + d.bar.ViewAs(ratio)
}

func usage(used, limit int) string {
	if limit <= 0 {
		return fmt.Sprintf("%d (unlimited)", used)
	}
	return fmt.Sprintf("%d / %d", used, limit)
}

// RunDashboard runs the dashboard until the user quits or ctx is cancelled.
func RunDashboard(ctx context.Context, fetch FetchFunc, interval time.Duration) error {
	p := tea.NewProgram(NewDashboard(ctx, fetch, interval), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("monitor dashboard: %w", err)
	}
	return nil
}
