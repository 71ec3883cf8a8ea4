package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/pipeline"
)

// List styles
var (
	listDimStyle  = lipgloss.NewStyle().Foreground(colorDim)
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// barWidth is the progress bar width in cells.
const barWidth = 30

// =============================================================================
// BatchRow - One rendered image
// =============================================================================

// BatchRow is the outcome of one image in a batch.
type BatchRow struct {
	Input    string
	Output   string
	Status   pipeline.Status
	Cached   bool
	Duration time.Duration
	Err      error
}

func (r BatchRow) ok() bool {
	return r.Status == pipeline.StatusSucceeded && r.Err == nil
}

// icon marks a row as succeeded, skipped (a non-fatal error such as a hidden
// placeholder) or failed.
func (r BatchRow) icon() string {
	switch {
	case r.ok():
		return iconSuccess
	case r.Err != nil && !errors.IsFatal(r.Err):
		return iconWarning
	}
	return iconError
}

// =============================================================================
// BatchProgressModel - Live batch progress
// =============================================================================

// batchRowMsg reports a finished image to the progress model.
type batchRowMsg struct {
	index int
	row   BatchRow
}

// batchDoneMsg tells the progress model that every job returned.
type batchDoneMsg struct{}

// BatchProgressModel is the bubbletea model showing batch progress.
type BatchProgressModel struct {
	Title    string
	Rows     []BatchRow
	Done     int
	Failed   int
	Canceled bool

	// cancel aborts the batch when the user quits early.
	cancel func()
	recent []int
	start  time.Time
}

// NewBatchProgressModel creates a progress model for total images.
func NewBatchProgressModel(title string, total int, cancel func()) BatchProgressModel {
	return BatchProgressModel{
		Title:  title,
		Rows:   make([]BatchRow, total),
		cancel: cancel,
		start:  time.Now(),
	}
}

func (m BatchProgressModel) Init() tea.Cmd {
	return nil
}

func (m BatchProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Canceled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case batchRowMsg:
		if msg.index >= 0 && msg.index < len(m.Rows) {
			m.Rows[msg.index] = msg.row
		}
		m.Done++
		if !msg.row.ok() {
			m.Failed++
		}
		m.recent = append(m.recent, msg.index)
		if len(m.recent) > 5 {
			m.recent = m.recent[1:]
		}
	case batchDoneMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m BatchProgressModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n\n")
	b.WriteString(progressBar(m.Done, len(m.Rows)))
	b.WriteString(fmt.Sprintf("  %d/%d", m.Done, len(m.Rows)))
	if m.Failed > 0 {
		b.WriteString(StyleWarning.Render(fmt.Sprintf("  %d failed", m.Failed)))
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  %s", time.Since(m.start).Round(100*time.Millisecond))))
	b.WriteString("\n\n")

	for _, i := range m.recent {
		r := m.Rows[i]
		switch r.icon() {
		case iconSuccess:
			b.WriteString(styleIconSuccess.Render(iconSuccess) + " " + filepath.Base(r.Input))
		case iconWarning:
			b.WriteString(styleIconWarning.Render(iconWarning) + " " + filepath.Base(r.Input) + " " + listDimStyle.Render(rowError(r)))
		default:
			b.WriteString(styleIconError.Render(iconError) + " " + filepath.Base(r.Input) + " " + listDimStyle.Render(rowError(r)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("q quit"))
	b.WriteString("\n")
	return b.String()
}

// progressBar renders a fixed-width bar for done out of total.
func progressBar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = done * barWidth / total
	}
	return barFullStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", barWidth-filled))
}

// =============================================================================
// Summary Table
// =============================================================================

// renderBatchSummary renders the per-image result table.
func renderBatchSummary(rows []BatchRow) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		if r.Input == "" {
			continue
		}
		status := r.icon()
		detail := filepath.Base(r.Output)
		switch {
		case !r.ok():
			detail = rowError(r)
		case r.Cached:
			status = iconCached
		}
		data = append(data, []string{
			filepath.Base(r.Input),
			status,
			r.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Image", "Status", "Time", "Output").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if row < 0 || row >= len(data) {
				return base
			}
			if col == 1 {
				switch data[row][1] {
				case iconError:
					return base.Foreground(colorRed)
				case iconWarning:
					return base.Foreground(colorYellow)
				}
				return base.Foreground(colorGreen)
			}
			if col == 2 {
				return base.Foreground(colorDim)
			}
			return base
		})

	return t.Render()
}

// rowError returns the user-facing error for a row.
func rowError(r BatchRow) string {
	if r.Err == nil {
		return string(r.Status)
	}
	if code := errors.GetCode(r.Err); code != "" {
		return fmt.Sprintf("%s: %s", code, errors.UserMessage(r.Err))
	}
	return r.Err.Error()
}
