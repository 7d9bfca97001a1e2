package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"goldtracer/internal/dashboard"
	"goldtracer/internal/domain"
	"goldtracer/internal/quotes"
	"goldtracer/internal/util"
)

// Styles.
var (
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3")) // black on gold
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	priceStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	gainStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	pivotStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	openStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	aiStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	alertStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

const (
	barWidth    = 30
	sparkWidth  = 48
	intelLimit  = 12
	gaugeWidth  = 20
	timeDisplay = "15:04:05"
)

var kindStyles = map[domain.NewsKind]lipgloss.Style{
	domain.NewsAlert:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	domain.NewsData:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	domain.NewsNotice: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	domain.NewsFlash:  lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
}

func changeStyle(s string) lipgloss.Style {
	switch {
	case s == dashboard.Placeholder:
		return dimStyle
	case strings.HasPrefix(s, "+"):
		return gainStyle
	case strings.HasPrefix(s, "-"):
		return lossStyle
	}
	return dimStyle
}

// displaySnapshot returns the current snapshot with overlay quotes merged
// into its ticker list. The stored snapshot is never modified.
func (m ui) displaySnapshot() *domain.Snapshot {
	snap := m.app.model.Current()
	extra := m.app.intel.Quotes()
	if len(extra) == 0 {
		return snap
	}
	var view domain.Snapshot
	if snap != nil {
		view = *snap
	}
	view.Tickers = quotes.Merge(view.Tickers, extra)
	return &view
}

func (m ui) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	snap := m.displaySnapshot()
	h := dashboard.BuildHeader(snap, m.now)
	if cd := m.app.model.Countdown(); cd != "" {
		h.Countdown = cd
	}
	fomc := h.Countdown
	if fomc == "" {
		fomc = dashboard.Placeholder
	}
	regionsText := "closed"
	if regions := util.OpenRegions(m.now); len(regions) > 0 {
		names := make([]string, len(regions))
		for i, r := range regions {
			names[i] = string(r)
		}
		regionsText = strings.Join(names, "/")
	}
	headerText := fmt.Sprintf(
		" GOLD %s %s   USD/CNY %s   DXY %s   10Y %s  real %s   FOMC %s   %s %s ",
		h.Gold, h.GoldChange, h.USDCNY, h.DXY, h.Nominal, h.Real, fomc,
		regionsText, m.now.Format(timeDisplay),
	)
	if m.app.model.Current() == nil {
		headerText = " GOLD TERMINAL   waiting for first sync... "
	}
	headerBar := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("3")).
		Render(padOrTrunc(headerText, m.width))

	var footerLine string
	switch m.mode {
	case modeChat:
		prefix := ""
		if m.app.session.Busy() {
			prefix = m.spin.View() + " "
		}
		footerLine = prefix + m.input.View()
	case modeCorrection:
		footerLine = "FedWatch " + m.input.View()
	default:
		pct := m.viewport.ScrollPercent() * 100
		left := " q quit  t timeframe  r/R range  s sync  S full sync  f fedwatch  e export  c clear chat  enter chat  pgup/dn scroll"
		right := fmt.Sprintf("%.0f%% ", pct)
		gap := m.width - len(left) - len(right)
		if gap < 0 {
			gap = 0
		}
		footerLine = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("8")).
			Render(padOrTrunc(left+strings.Repeat(" ", gap)+right, m.width))
	}

	noticeLine := ""
	if m.notice != "" {
		if m.noticeOK {
			noticeLine = okStyle.Render(" " + m.notice)
		} else {
			noticeLine = alertStyle.Render(" " + m.notice)
		}
	}

	return headerBar + "\n" + m.viewport.View() + "\n" + footerLine + "\n" + noticeLine
}

func (m ui) renderContent() string {
	snap := m.displaySnapshot()
	var b strings.Builder

	m.renderMarket(&b, snap)
	m.renderPivots(&b, snap)
	renderAdvice(&b, snap)
	m.renderSessions(&b, snap)
	m.renderHistory(&b)
	m.renderIntel(&b, snap)
	m.renderChat(&b)
	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(" " + title + " "))
	b.WriteString("\n")
}

func (m ui) renderMarket(b *strings.Builder, snap *domain.Snapshot) {
	section(b, "MARKET")
	if snap == nil || len(snap.Tickers) == 0 {
		b.WriteString(dimStyle.Render("  no quotes yet"))
		b.WriteString("\n")
		return
	}
	b.WriteString(labelStyle.Render(fmt.Sprintf("  %-10s %12s %9s %12s %12s", "TICKER", "LAST", "CHG", "HIGH", "LOW")))
	b.WriteString("\n")
	for _, t := range snap.Tickers {
		chg := dashboard.FormatChange(t.ChangePercent)
		fmt.Fprintf(b, "  %-10s %s %s %12s %12s\n",
			t.Ticker,
			priceStyle.Render(fmt.Sprintf("%12s", dashboard.FormatPrice(t.LastPrice))),
			changeStyle(chg).Render(fmt.Sprintf("%9s", chg)),
			dashboard.FormatPrice(t.HighPrice),
			dashboard.FormatPrice(t.LowPrice),
		)
	}

	if len(snap.Macro) > 0 {
		b.WriteString("\n")
		for _, mi := range snap.Macro {
			val := dashboard.FormatNumber(mi.Value, 2)
			line := fmt.Sprintf("  %-22s %10s %-4s", mi.Name, val, mi.Unit)
			if mi.ChangeValue.Valid {
				chg := dashboard.FormatNumber(mi.ChangeValue, 2)
				if mi.ChangeValue.Float() > 0 {
					chg = "+" + chg
				}
				line += " " + changeStyle(chg).Render(chg)
			}
			if mi.IsStale {
				line += dimStyle.Render(" (stale)")
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if len(snap.Institutional) > 0 {
		b.WriteString("\n")
		for _, st := range snap.Institutional {
			fmt.Fprintf(b, "  %-10s %-28s %12s\n", st.Category, st.Label, dashboard.FormatNumber(st.Value, 2))
		}
	}
}

func (m ui) renderPivots(b *strings.Builder, snap *domain.Snapshot) {
	tf := m.timeframe()
	view := dashboard.ResolvePivots(snap, tf)
	title := fmt.Sprintf("PIVOTS %s", tf)
	if view.Placeholder {
		title += " (placeholder)"
	}
	section(b, title)

	for _, row := range view.Ladder() {
		line := fmt.Sprintf("  %-26s %10s", row.Label, row.Value)
		if row.Pivot {
			line = pivotStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	bars := dashboard.PivotBars(view)
	lo, hi := math.MaxFloat64, -math.MaxFloat64
	for _, bar := range bars {
		lo = math.Min(lo, bar.Value)
		hi = math.Max(hi, bar.Value)
	}
	b.WriteString("\n")
	for _, bar := range bars {
		n := barWidth
		if hi > lo {
			n = 4 + int(math.Round((bar.Value-lo)/(hi-lo)*float64(barWidth-4)))
		}
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(bar.Color))
		fmt.Fprintf(b, "  %-6s %s %.1f\n", bar.Label, style.Render(strings.Repeat("█", n)), bar.Value)
	}
}

func renderAdvice(b *strings.Builder, snap *domain.Snapshot) {
	section(b, "TRADE ADVICE")
	card := dashboard.BuildAdviceCard(snap)
	fmt.Fprintf(b, "  %s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("entry"), card.Entry,
		labelStyle.Render("target"), gainStyle.Render(card.Target),
		labelStyle.Render("stop"), lossStyle.Render(card.Stop),
		labelStyle.Render("confidence"), card.Confidence,
	)
	fmt.Fprintf(b, "  %s\n", card.Rationale)

	if fw := snap.FedWatch(); fw != nil {
		fmt.Fprintf(b, "  %s %s  pause %s%%  cut25 %s%%  implied %s\n",
			labelStyle.Render("fedwatch"),
			fw.MeetingDate,
			dashboard.FormatNumber(fw.ProbPause, 1),
			dashboard.FormatNumber(fw.ProbCut25, 1),
			dashboard.FormatNumber(fw.ImpliedRate, 2),
		)
	}
	if snap != nil && snap.Analysis != nil {
		a := snap.Analysis
		line := fmt.Sprintf("  %s %s", labelStyle.Render("macro"), a.MacroSegment.Sentiment)
		var alerts []string
		if a.Alerts.PremiumWarning {
			alerts = append(alerts, "premium")
		}
		if a.Alerts.CrowdedWarning {
			alerts = append(alerts, "crowded")
		}
		if a.Alerts.ETFDivergence {
			alerts = append(alerts, "etf divergence")
		}
		if len(alerts) > 0 {
			line += "  " + alertStyle.Render("alerts: "+strings.Join(alerts, ", "))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func (m ui) renderSessions(b *strings.Builder, snap *domain.Snapshot) {
	section(b, "SESSIONS")
	states := util.SessionStates(m.now)
	for _, s := range util.Sessions {
		state := dimStyle.Render("closed")
		if states[s.Region] {
			state = openStyle.Render("OPEN")
		}
		fmt.Fprintf(b, "  %-7s %02d:00-%02d:00 UTC  %s\n", s.Region, s.Open, s.Close, state)
	}

	g := dashboard.SentimentGauge(snap)
	filled := int(math.Round(g / 100 * gaugeWidth))
	fmt.Fprintf(b, "  %-7s [%s%s] %.0f\n",
		"risk",
		lossStyle.Render(strings.Repeat("■", filled)),
		dimStyle.Render(strings.Repeat("·", gaugeWidth-filled)),
		g,
	)
}

func (m ui) renderHistory(b *strings.Builder) {
	r, points, loaded := m.app.model.History()
	if !loaded {
		r = m.historyRange()
	}
	section(b, fmt.Sprintf("YIELD HISTORY %s", r))
	if !loaded {
		b.WriteString(dimStyle.Render("  loading..."))
		b.WriteString("\n")
		return
	}
	if len(points) == 0 {
		b.WriteString(dimStyle.Render("  no data"))
		b.WriteString("\n")
		return
	}
	for _, s := range []dashboard.Series{dashboard.SeriesNominal, dashboard.SeriesReal, dashboard.SeriesBreakeven} {
		st := dashboard.Stats(points, s)
		if st.Count == 0 {
			fmt.Fprintf(b, "  %-10s %s\n", s, dimStyle.Render("n/a"))
			continue
		}
		chg := fmt.Sprintf("%+.2f", st.Change())
		fmt.Fprintf(b, "  %-10s %s  %.2f%% %s  %s\n",
			s,
			dashboard.Sparkline(points, s, sparkWidth),
			st.Last,
			changeStyle(chg).Render(chg),
			dimStyle.Render(fmt.Sprintf("min %.2f max %.2f", st.Min, st.Max)),
		)
	}
	fmt.Fprintf(b, "  %s\n", dimStyle.Render(fmt.Sprintf("%s .. %s  (%d days)", points[0].LogDate, points[len(points)-1].LogDate, len(points))))
}

func (m ui) renderIntel(b *strings.Builder, snap *domain.Snapshot) {
	section(b, "INTEL")
	items := dashboard.IntelStream(snap, m.app.intel.Items(), intelLimit)
	if len(items) == 0 {
		b.WriteString(dimStyle.Render("  no intel"))
		b.WriteString("\n")
		return
	}
	for _, it := range items {
		style := kindStyles[it.Kind]
		stamp := "--:--"
		if !it.PublishedAt.IsZero() {
			stamp = it.PublishedAt.Local().Format("15:04")
		}
		fmt.Fprintf(b, "  %s %s %s", dimStyle.Render(stamp), style.Render(fmt.Sprintf("%-6s", it.Kind)), it.Title)
		if it.Source != "" {
			b.WriteString(dimStyle.Render(" · " + it.Source))
		}
		b.WriteString("\n")
	}
}

func (m ui) renderChat(b *strings.Builder) {
	section(b, "AI_CORE")
	wrap := lipgloss.NewStyle().Width(max(m.width-10, 20))
	for _, turn := range m.app.session.Transcript() {
		who := aiStyle.Render("AI  ")
		if turn.Role == domain.RoleUser {
			who = userStyle.Render("YOU ")
		}
		body := wrap.Render(turn.Content)
		lines := strings.Split(body, "\n")
		fmt.Fprintf(b, "  %s %s %s\n", dimStyle.Render(turn.Timestamp), who, lines[0])
		for _, l := range lines[1:] {
			fmt.Fprintf(b, "  %s %s\n", strings.Repeat(" ", 10), l)
		}
	}
	if m.app.session.Busy() {
		fmt.Fprintf(b, "  %s analyzing...\n", m.spin.View())
	}
}

func padOrTrunc(s string, width int) string {
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}
