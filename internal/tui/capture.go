// Package tui is the interactive capture screen: a live preview of the crop
// the model will see, a trigger, and the ranked results.
package tui

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"visearch/internal/domain"
	"visearch/internal/usecase"
)

// Step is the current screen state.
type Step int

const (
	StepPreview Step = iota
	StepSearching
	StepResults
	StepFailed
)

const (
	logTail       = 5
	previewCols   = 56
	previewPixels = 56 // pixel rows; two per text line
)

type preloadDoneMsg struct{ err error }

type frameMsg struct{ img *image.RGBA }

type searchResultMsg struct {
	results []domain.MatchResult
	err     error
	took    time.Duration
}

type retakeMsg struct{ err error }

type reloadMsg struct {
	records int
	err     error
}

// Resolver maps a code to a display image path, or "" when there is none.
type Resolver func(code string) string

// cancelHolder shares the search cancel func across model copies.
type cancelHolder struct {
	cancel context.CancelFunc
}

// CaptureModel is the bubbletea model for a capture session.
type CaptureModel struct {
	ctx      context.Context
	pipeline *usecase.Pipeline
	capture  *usecase.Capture
	frames   <-chan *image.RGBA
	limit    int
	resolve  Resolver

	step    Step
	ready   bool
	preview *image.RGBA
	results []domain.MatchResult
	table   table.Model
	spinner spinner.Model
	err     error
	logs    []string
	search  *cancelHolder
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	logStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	frameStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63"))
)

// NewCaptureModel builds the screen for an already started capture. frames
// delivers preview crops from the capture's preview loop.
func NewCaptureModel(ctx context.Context, pipeline *usecase.Pipeline, capture *usecase.Capture, frames <-chan *image.RGBA, limit int, resolve Resolver) CaptureModel {
	s := spinner.New()
	s.Spinner = spinner.Dot

	if resolve == nil {
		resolve = func(string) string { return "" }
	}

	return CaptureModel{
		ctx:      ctx,
		pipeline: pipeline,
		capture:  capture,
		frames:   frames,
		limit:    limit,
		resolve:  resolve,
		step:     StepPreview,
		spinner:  s,
		search:   &cancelHolder{},
	}
}

// Init preloads the model and references while the preview runs.
func (m CaptureModel) Init() tea.Cmd {
	return tea.Batch(m.preload(), m.waitFrame(), m.spinner.Tick)
}

func (m CaptureModel) preload() tea.Cmd {
	return func() tea.Msg {
		return preloadDoneMsg{err: m.pipeline.Init(m.ctx)}
	}
}

func (m CaptureModel) waitFrame() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case img, ok := <-m.frames:
			if !ok {
				return nil
			}
			return frameMsg{img: img}
		}
	}
}

func (m CaptureModel) trigger() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.search.cancel = cancel
	return func() tea.Msg {
		defer cancel()
		start := time.Now()
		results, err := m.capture.Trigger(ctx, m.limit)
		return searchResultMsg{results: results, err: err, took: time.Since(start)}
	}
}

func (m CaptureModel) retake() tea.Cmd {
	return func() tea.Msg {
		return retakeMsg{err: m.capture.Retake(m.ctx)}
	}
}

func (m CaptureModel) reload() tea.Cmd {
	return func() tea.Msg {
		set, err := m.pipeline.Reload(m.ctx)
		if err != nil {
			return reloadMsg{err: err}
		}
		return reloadMsg{records: set.Len()}
	}
}

// Update implements tea.Model.
func (m CaptureModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKey(msg)

	case preloadDoneMsg:
		if msg.err != nil {
			m.logf("preload failed: %v", msg.err)
			return m, nil
		}
		m.ready = true
		m.logf("model and references ready")
		return m, nil

	case frameMsg:
		if m.step == StepPreview || m.step == StepSearching {
			m.preview = msg.img
		}
		return m, m.waitFrame()

	case searchResultMsg:
		m.search.cancel = nil
		if msg.err != nil {
			m.err = msg.err
			m.step = StepFailed
			m.logf("search failed (%s): %v", domain.KindOf(msg.err), msg.err)
			return m, nil
		}
		m.err = nil
		m.results = msg.results
		m.table = m.resultsTable()
		m.step = StepResults
		m.ready = true
		m.logf("%d matches in %s", len(msg.results), msg.took.Round(time.Millisecond))
		return m, nil

	case retakeMsg:
		if msg.err != nil {
			m.err = msg.err
			m.step = StepFailed
			m.logf("camera restart failed: %v", msg.err)
			return m, nil
		}
		m.err = nil
		m.results = nil
		m.step = StepPreview
		m.logf("camera restarted")
		return m, nil

	case reloadMsg:
		if msg.err != nil {
			m.logf("reload failed: %v", msg.err)
			return m, nil
		}
		m.logf("references reloaded: %d records", msg.records)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m CaptureModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEscape:
		return m.quit()
	case tea.KeySpace, tea.KeyEnter:
		if m.step == StepPreview || (m.step == StepFailed && m.capture.Active()) {
			m.step = StepSearching
			m.logf("searching...")
			return m, m.trigger()
		}
		return m, nil
	}

	if msg.Type == tea.KeyRunes && len(msg.Runes) > 0 {
		switch msg.Runes[0] {
		case 'q':
			return m.quit()
		case 'r':
			if m.step == StepResults || m.step == StepFailed {
				m.preview = nil
				return m, m.retake()
			}
		case 'R':
			if m.step != StepSearching {
				m.logf("reloading references...")
				return m, m.reload()
			}
		}
	}

	if m.step == StepResults {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m CaptureModel) quit() (tea.Model, tea.Cmd) {
	if m.search.cancel != nil {
		m.search.cancel()
	}
	return m, tea.Quit
}

func (m *CaptureModel) logf(format string, args ...any) {
	line := time.Now().Format("15:04:05") + " " + fmt.Sprintf(format, args...)
	m.logs = append(m.logs, line)
	if len(m.logs) > logTail {
		m.logs = append([]string(nil), m.logs[len(m.logs)-logTail:]...)
	}
}

func (m CaptureModel) resultsTable() table.Model {
	columns := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Code", Width: 20},
		{Title: "Match", Width: 6},
		{Title: "Image", Width: 40},
	}
	rows := make([]table.Row, len(m.results))
	for i, r := range m.results {
		rows[i] = table.Row{
			fmt.Sprintf("%d", i+1),
			r.Code,
			fmt.Sprintf("%d%%", r.Percent()),
			m.resolve(r.Code),
		}
	}
	height := len(rows)
	if height > 10 {
		height = 10
	}
	return table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height+1),
	)
}

// Results returns the last successful search results.
func (m CaptureModel) Results() []domain.MatchResult {
	return m.results
}

// View implements tea.Model.
func (m CaptureModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("visearch capture"))
	b.WriteString("\n\n")

	switch m.step {
	case StepPreview, StepSearching:
		if m.preview != nil {
			b.WriteString(frameStyle.Render(RenderPreview(m.preview, previewCols, previewPixels)))
		} else {
			b.WriteString(hintStyle.Render("waiting for camera..."))
		}
		b.WriteString("\n")
		if m.step == StepSearching {
			b.WriteString(m.spinner.View() + " Searching...\n")
		} else if !m.ready {
			b.WriteString(m.spinner.View() + hintStyle.Render(" loading model and references (you can capture already)") + "\n")
		}
		b.WriteString(hintStyle.Render("space: capture  R: reload references  q: quit"))

	case StepResults:
		if len(m.results) == 0 {
			b.WriteString("No matches.\n")
		} else {
			top := m.results[0]
			b.WriteString(successStyle.Render(fmt.Sprintf("Best match: %s (%d%%)", top.Code, top.Percent())))
			b.WriteString("\n\n")
			b.WriteString(m.table.View())
		}
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("r: retake  q: quit"))

	case StepFailed:
		b.WriteString(errorStyle.Render(failureText(m.err)))
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("space: try again  r: restart camera  q: quit"))
	}

	if len(m.logs) > 0 {
		b.WriteString("\n\n")
		b.WriteString(logStyle.Render(strings.Join(m.logs, "\n")))
	}
	b.WriteString("\n")
	return b.String()
}

func failureText(err error) string {
	switch domain.KindOf(err) {
	case domain.KindModelNotLoaded:
		return "The recognition model is not available."
	case domain.KindDataUnavailable:
		return "The product reference data could not be loaded."
	case domain.KindInvalidFrame:
		return "No usable camera frame yet. Try again."
	case domain.KindCameraUnavailable:
		return "The camera is not available."
	case domain.KindInferenceFailed:
		return "Image analysis failed. Try again."
	}
	if err != nil {
		return "Search failed: " + err.Error()
	}
	return "Search failed."
}

// RenderPreview draws img as truecolor half blocks: cols characters wide and
// rows pixel rows tall (rows/2 lines), sampling nearest pixels.
func RenderPreview(img *image.RGBA, cols, rows int) string {
	bounds := img.Bounds()
	if cols <= 0 || rows <= 0 || bounds.Empty() {
		return ""
	}
	rows -= rows % 2

	sample := func(cx, py int) (uint8, uint8, uint8) {
		x := bounds.Min.X + cx*bounds.Dx()/cols
		y := bounds.Min.Y + py*bounds.Dy()/rows
		i := img.PixOffset(x, y)
		return img.Pix[i], img.Pix[i+1], img.Pix[i+2]
	}

	var b strings.Builder
	for py := 0; py < rows; py += 2 {
		for cx := 0; cx < cols; cx++ {
			tr, tg, tb := sample(cx, py)
			br, bg, bb := sample(cx, py+1)
			fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀", tr, tg, tb, br, bg, bb)
		}
		b.WriteString("\x1b[0m")
		if py+2 < rows {
			b.WriteString("\n")
		}
	}
	return b.String()
}
