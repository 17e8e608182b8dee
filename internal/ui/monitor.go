// Package ui реализует терминальный монитор потока декодированных событий.
// Модель bubbletea поверх подписки на диспетчер: канал наполняет
// подписчик, цикл Update перевзводит чтение после каждого сообщения.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/events"
	"github.com/rovshanmuradov/soltrade/internal/types"
)

const (
	// maxRows ограничивает таблицу: монитор показывает хвост потока,
	// а не историю. Полная история остаётся в спилл-файле логгера.
	maxRows = 500

	statsInterval = time.Second
)

// EventMsg доставляет декодированное событие в цикл bubbletea.
type EventMsg struct {
	Event *events.UnifiedEvent
}

// streamClosedMsg приходит после закрытия канала событий.
type streamClosedMsg struct{}

type statsTickMsg time.Time

// StatsFunc отдаёт счётчики слушателя для строки статуса.
type StatsFunc func() (notifications, dispatched uint64)

// KeyMap описывает горячие клавиши монитора.
type KeyMap struct {
	Quit  key.Binding
	Clear key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
	}
}

// Monitor реализует tea.Model ленты событий. Свежие строки сверху;
// прокрутку и курсор ведёт таблица bubbles. Канал буферизуется на подписке,
// переполнение режется там же, чтобы не тормозить доставку диспетчера.
type Monitor struct {
	events <-chan *events.UnifiedEvent
	stats  StatsFunc
	logger *zap.Logger

	table   table.Model
	spinner spinner.Model
	keys    KeyMap
	styles  Styles

	received      uint64
	buys          uint64
	sells         uint64
	notifications uint64
	dispatched    uint64
	closed        bool
	started       time.Time
	width         int
	height        int
}

func NewMonitor(ch <-chan *events.UnifiedEvent, stats StatsFunc, logger *zap.Logger) *Monitor {
	styles := DefaultStyles()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Waiting

	tbl := table.New(
		table.WithColumns(monitorColumns(0)),
		table.WithFocused(true),
		table.WithHeight(20),
		table.WithStyles(styles.Table),
	)

	return &Monitor{
		events:  ch,
		stats:   stats,
		logger:  logger,
		table:   tbl,
		spinner: sp,
		keys:    DefaultKeyMap(),
		styles:  styles,
		started: time.Now(),
	}
}

// monitorColumns возвращает колонки таблицы; extra раздаёт лишнюю ширину
// колонке деталей.
func monitorColumns(extra int) []table.Column {
	if extra < 0 {
		extra = 0
	}
	return []table.Column{
		{Title: "Time", Width: 8},
		{Title: "Protocol", Width: 14},
		{Title: "Event", Width: 12},
		{Title: "Detail", Width: 24 + extra},
		{Title: "Amount", Width: 20},
		{Title: "Signature", Width: 15},
	}
}

// fixedColumnsWidth складывает ширину колонок без растяжимой части
// плюс межколоночные отступы таблицы.
const fixedColumnsWidth = 8 + 14 + 12 + 24 + 20 + 15 + 12

func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent(), m.tickStats())
}

// waitForEvent читает одно событие из канала; команда перевзводится в
// Update, поэтому на канале всегда висит ровно один читатель.
func (m *Monitor) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return streamClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

func (m *Monitor) tickStats() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(monitorColumns(msg.Width - fixedColumnsWidth))
		if h := msg.Height - 6; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Clear):
			m.table.SetRows(nil)
			return m, nil
		}
		// Стрелки и прокрутку обрабатывает таблица.
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case EventMsg:
		m.received++
		switch side(msg.Event) {
		case types.SideBuy:
			m.buys++
		case types.SideSell:
			m.sells++
		}
		rows := append([]table.Row{formatRow(msg.Event, time.Now())}, m.table.Rows()...)
		if len(rows) > maxRows {
			rows = rows[:maxRows]
		}
		m.table.SetRows(rows)
		return m, m.waitForEvent()

	case streamClosedMsg:
		m.closed = true
		if m.logger != nil {
			m.logger.Info("канал событий закрыт, лента остановлена")
		}
		return m, nil

	case statsTickMsg:
		if m.stats != nil {
			m.notifications, m.dispatched = m.stats()
		}
		return m, m.tickStats()

	case spinner.TickMsg:
		// Спиннер нужен только до первого события.
		if m.received == 0 && !m.closed {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	return m, nil
}

func (m *Monitor) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("soltrade monitor"))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	if m.received == 0 && !m.closed {
		b.WriteString(m.spinner.View())
		b.WriteString(m.styles.Waiting.Render("waiting for events..."))
		b.WriteString("\n")
	}
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("up/down scroll · c clear · q quit"))
	return m.styles.Frame.Render(b.String())
}

func (m *Monitor) statusLine() string {
	sep := m.styles.Status.Render(" · ")
	parts := []string{
		m.styles.Status.Render(fmt.Sprintf("uptime %s", time.Since(m.started).Truncate(time.Second))),
		m.styles.Status.Render(fmt.Sprintf("events %d", m.received)),
		m.styles.Buy.Render(fmt.Sprintf("buys %d", m.buys)),
		m.styles.Sell.Render(fmt.Sprintf("sells %d", m.sells)),
		m.styles.Status.Render(fmt.Sprintf("ws %d", m.notifications)),
		m.styles.Status.Render(fmt.Sprintf("dispatched %d", m.dispatched)),
	}
	if m.closed {
		parts = append(parts, m.styles.Warn.Render("stream closed"))
	}
	return strings.Join(parts, sep)
}

// side определяет направление сделки для счётчиков статуса; протоколы без
// явного направления относительно SOL дают пустую сторону.
func side(ev *events.UnifiedEvent) types.Side {
	switch p := ev.Payload.(type) {
	case *events.PumpFunTrade:
		if p.IsBuy {
			return types.SideBuy
		}
		return types.SideSell
	case *events.PumpSwapBuy:
		return types.SideBuy
	case *events.PumpSwapSell:
		return types.SideSell
	case *events.BonkTrade:
		if p.TradeDirection == 0 {
			return types.SideBuy
		}
		return types.SideSell
	}
	return ""
}

func formatRow(ev *events.UnifiedEvent, now time.Time) table.Row {
	detail, amount := describe(ev)
	return table.Row{
		now.Format("15:04:05"),
		ev.Protocol.String(),
		ev.Kind.String(),
		detail,
		amount,
		shortSignature(ev.Signature),
	}
}

// describe переводит полезную нагрузку события в колонки Detail и Amount.
// Суммы в SOL показываются только там, где квота заведомо WSOL;
// для raydium стороны пула неизвестны, суммы остаются в сырых единицах.
func describe(ev *events.UnifiedEvent) (detail, amount string) {
	switch p := ev.Payload.(type) {
	case *events.PumpFunTrade:
		d := "sell"
		if p.IsBuy {
			d = "buy"
		}
		return d + " " + shortKey(p.Mint), solAmount(p.SolAmount)
	case *events.PumpFunCreate:
		return p.Symbol + " " + shortKey(p.Mint), ""
	case *events.PumpFunComplete:
		return shortKey(p.Mint), ""
	case *events.PumpSwapBuy:
		return shortKey(p.Pool), solAmount(p.QuoteAmountIn)
	case *events.PumpSwapSell:
		return shortKey(p.Pool), solAmount(p.QuoteAmountOut)
	case *events.PumpSwapCreatePool:
		return shortKey(p.BaseMint), ""
	case *events.BonkTrade:
		// Покупка тратит квоту (AmountIn), продажа получает её (AmountOut).
		if p.TradeDirection == 0 {
			return "buy " + shortKey(p.PoolState), solAmount(p.AmountIn)
		}
		return "sell " + shortKey(p.PoolState), solAmount(p.AmountOut)
	case *events.BonkPoolCreate:
		return p.Symbol + " " + shortKey(p.PoolState), ""
	case *events.RaydiumCpmmSwap:
		d := "quote>base"
		if p.BaseInput {
			d = "base>quote"
		}
		return d + " " + shortKey(p.PoolID), compactAmount(p.InputAmount) + " > " + compactAmount(p.OutputAmount)
	case *events.RaydiumAmmV4SwapBaseIn:
		d := "pc>coin"
		if p.Direction == 1 {
			d = "coin>pc"
		}
		return d, compactAmount(p.AmountIn) + " > " + compactAmount(p.OutAmount)
	}
	return "", ""
}

func shortKey(key solana.PublicKey) string {
	s := key.String()
	if len(s) <= 9 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

func shortSignature(sig solana.Signature) string {
	s := sig.String()
	if len(s) <= 14 {
		return s
	}
	return s[:6] + ".." + s[len(s)-6:]
}

func solAmount(lamports uint64) string {
	return fmt.Sprintf("%.4f SOL", float64(lamports)/float64(types.LamportsPerSOL))
}

// compactAmount сокращает сырые единицы токена до читаемой величины.
func compactAmount(v uint64) string {
	switch {
	case v >= 1_000_000_000_000:
		return fmt.Sprintf("%.1fT", float64(v)/1e12)
	case v >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(v)/1e9)
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(v)/1e6)
	case v >= 10_000:
		return fmt.Sprintf("%.1fK", float64(v)/1e3)
	}
	return fmt.Sprintf("%d", v)
}
