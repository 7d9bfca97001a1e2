package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"goldtracer/internal/chat"
	"goldtracer/internal/domain"
	"goldtracer/internal/live"
	"goldtracer/pkg/goldtracer"
)

const (
	clockInterval = 30 * time.Second
	intelInterval = 5 * time.Minute
)

// Messages.
type modelEventMsg live.Event
type chatChangedMsg struct{}
type clockMsg time.Time
type intelTickMsg struct{}

type chatDoneMsg struct{ err error }

type syncDoneMsg struct{ notice goldtracer.Notice }

type correctionDoneMsg struct{ err error }

type intelMsg struct {
	items  []domain.NewsItem
	quotes []domain.TickerQuote
	err    error
}

type exportDoneMsg struct {
	path string
	err  error
}

type inputMode int

const (
	modeBrowse inputMode = iota
	modeChat
	modeCorrection
)

// ui is the bubbletea model. All view state lives here; the shared
// dashboard state lives in app.model.
type ui struct {
	ctx context.Context
	app *app

	subID  int
	events <-chan live.Event

	tfIdx    int
	rangeIdx int
	mode     inputMode

	input    textinput.Model
	spin     spinner.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	notice   string
	noticeOK bool
	now      time.Time
}

func newUI(ctx context.Context, a *app, initial domain.HistoryRange) ui {
	ti := textinput.New()
	ti.CharLimit = 2000
	ti.Prompt = "> "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	rangeIdx := 0
	for i, r := range domain.HistoryRanges {
		if r == initial {
			rangeIdx = i
		}
	}
	tfIdx := 0
	for i, tf := range domain.Timeframes {
		if tf == domain.Timeframe1D {
			tfIdx = i
		}
	}

	a.session.SetTimeframe(domain.Timeframes[tfIdx])

	id, ch := a.model.Subscribe(64)
	return ui{
		ctx:      ctx,
		app:      a,
		subID:    id,
		events:   ch,
		tfIdx:    tfIdx,
		rangeIdx: rangeIdx,
		input:    ti,
		spin:     sp,
		now:      time.Now(),
	}
}

func waitEvent(ch <-chan live.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return modelEventMsg(evt)
	}
}

func waitChat(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return chatChangedMsg{}
	}
}

func clockCmd() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

func (m ui) intelCmd() tea.Cmd {
	a, ctx := m.app, m.ctx
	if a.feed.Empty() && a.overlay == nil {
		return nil
	}
	return func() tea.Msg {
		var msg intelMsg
		now := time.Now()
		if !a.feed.Empty() {
			msg.items = a.feed.Fetch(ctx, now, a.cfg.News.Lookback)
		}
		if a.overlay != nil {
			msg.quotes, msg.err = a.overlay.Fetch(ctx, now)
		}
		return msg
	}
}

func (m ui) Init() tea.Cmd {
	return tea.Batch(
		waitEvent(m.events),
		waitChat(m.app.chatChanged),
		clockCmd(),
		m.intelCmd(),
		m.spin.Tick,
	)
}

func (m ui) timeframe() domain.Timeframe { return domain.Timeframes[m.tfIdx] }

func (m ui) historyRange() domain.HistoryRange { return domain.HistoryRanges[m.rangeIdx] }

func (m *ui) setNotice(ok bool, format string, args ...any) {
	m.notice = fmt.Sprintf(format, args...)
	m.noticeOK = ok
}

func (m *ui) refresh() {
	if m.ready {
		m.viewport.SetContent(m.renderContent())
	}
}

func (m ui) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.mode != modeBrowse {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 4
		vpHeight := m.height - 3 // header, input/help, notice
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refresh()
		return m, nil

	case modelEventMsg:
		m.refresh()
		return m, waitEvent(m.events)

	case chatChangedMsg:
		m.refresh()
		if m.mode == modeChat {
			m.viewport.GotoBottom()
		}
		return m, waitChat(m.app.chatChanged)

	case chatDoneMsg:
		switch {
		case errors.Is(msg.err, chat.ErrBusy):
			m.setNotice(false, "Analysis already in progress")
		case msg.err != nil && !errors.Is(msg.err, chat.ErrEmptyMessage):
			m.setNotice(false, "Chat: %v", msg.err)
		}
		m.refresh()
		return m, nil

	case syncDoneMsg:
		m.setNotice(msg.notice.OK, "%s", msg.notice.Text)
		m.refresh()
		return m, nil

	case correctionDoneMsg:
		switch {
		case errors.Is(msg.err, goldtracer.ErrInvalidCorrection):
			m.setNotice(false, "Invalid correction: %v", msg.err)
		case msg.err != nil:
			m.setNotice(false, "Correction rejected: %v", msg.err)
		default:
			m.setNotice(true, "FedWatch probabilities updated")
		}
		m.refresh()
		return m, nil

	case intelMsg:
		if msg.items != nil {
			m.app.intel.setItems(msg.items)
		}
		if msg.err != nil {
			m.app.log.Warn("quote overlay", "error", msg.err)
		} else if msg.quotes != nil {
			m.app.intel.setQuotes(msg.quotes)
		}
		m.refresh()
		return m, tea.Tick(intelInterval, func(time.Time) tea.Msg { return intelTickMsg{} })

	case intelTickMsg:
		return m, m.intelCmd()

	case exportDoneMsg:
		if msg.err != nil {
			m.setNotice(false, "Export failed: %v", msg.err)
		} else {
			m.setNotice(true, "Exported %s", msg.path)
		}
		return m, nil

	case clockMsg:
		m.now = time.Time(msg)
		m.refresh()
		return m, clockCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if m.app.session.Busy() {
			m.refresh()
		}
		return m, cmd
	}
	return m, nil
}

func (m ui) quit() (tea.Model, tea.Cmd) {
	m.app.model.Unsubscribe(m.subID)
	return m, tea.Quit
}

func (m ui) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m.quit()
	case "t":
		m.tfIdx = (m.tfIdx + 1) % len(domain.Timeframes)
		m.app.session.SetTimeframe(m.timeframe())
		m.refresh()
		return m, nil
	case "r", "R":
		n := len(domain.HistoryRanges)
		if msg.String() == "r" {
			m.rangeIdx = (m.rangeIdx + 1) % n
		} else {
			m.rangeIdx = (m.rangeIdx + n - 1) % n
		}
		m.app.sched.SetRange(m.historyRange())
		m.setNotice(true, "Loading %s history", m.historyRange())
		m.refresh()
		return m, nil
	case "s", "S":
		if !m.app.limiter.Allow() {
			m.setNotice(false, "Sync rate limited; try again shortly")
			return m, nil
		}
		full := msg.String() == "S"
		m.setNotice(true, "Syncing backend...")
		client, sched, ctx := m.app.client, m.app.sched, m.ctx
		return m, func() tea.Msg {
			return syncDoneMsg{notice: client.TriggerSync(ctx, full, sched.Refresh)}
		}
	case "c":
		session, ctx := m.app.session, m.ctx
		return m, func() tea.Msg {
			return chatDoneMsg{err: session.Clear(ctx)}
		}
	case "f":
		m.mode = modeCorrection
		m.input.SetValue("")
		m.input.Placeholder = "pause cut25 [yyyy-mm-dd]"
		return m, m.input.Focus()
	case "enter", "i", "/":
		m.mode = modeChat
		m.input.SetValue("")
		m.input.Placeholder = "Ask the analyst..."
		m.viewport.GotoBottom()
		return m, m.input.Focus()
	case "e":
		r, points, loaded := m.app.model.History()
		if !loaded {
			m.setNotice(false, "History not loaded yet")
			return m, nil
		}
		exp, ctx := m.app.exporter, m.ctx
		return m, func() tea.Msg {
			path, err := exp.ExportHistory(ctx, r, points, time.Now())
			return exportDoneMsg{path: path, err: err}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m ui) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case tea.KeyEnter:
		if m.mode == modeCorrection {
			return m.submitCorrection()
		}
		return m.submitChat()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ui) submitChat() (tea.Model, tea.Cmd) {
	if m.app.session.Busy() {
		m.setNotice(false, "Analysis in progress")
		return m, nil
	}
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}
	m.input.SetValue("")
	m.notice = ""
	session, ctx := m.app.session, m.ctx
	return m, func() tea.Msg {
		return chatDoneMsg{err: session.Send(ctx, text)}
	}
}

func (m ui) submitCorrection() (tea.Model, tea.Cmd) {
	fields := strings.Fields(m.input.Value())
	if len(fields) < 2 || len(fields) > 3 {
		m.setNotice(false, "Usage: <pause%%> <cut25%%> [yyyy-mm-dd]")
		return m, nil
	}
	in := goldtracer.CorrectionInput{ProbPause: fields[0], ProbCut25: fields[1]}
	if len(fields) == 3 {
		in.MeetingDate = fields[2]
	}
	m.mode = modeBrowse
	m.input.Blur()
	m.input.SetValue("")
	m.setNotice(true, "Submitting FedWatch correction...")

	client, sched, ctx := m.app.client, m.app.sched, m.ctx
	return m, func() tea.Msg {
		_, err := client.SubmitFedWatchCorrection(ctx, in, sched.Refresh)
		return correctionDoneMsg{err: err}
	}
}
