package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/soltrade/internal/events"
	"github.com/rovshanmuradov/soltrade/internal/types"
)

func tradeEvent(solLamports uint64, isBuy bool) *events.UnifiedEvent {
	return &events.UnifiedEvent{
		Protocol: types.ProtocolPumpFun,
		Kind:     events.KindTrade,
		Provenance: events.Provenance{
			Slot: 100,
		},
		Payload: &events.PumpFunTrade{
			Mint:      solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
			SolAmount: solLamports,
			IsBuy:     isBuy,
		},
	}
}

func TestDescribePayloads(t *testing.T) {
	cases := []struct {
		name         string
		event        *events.UnifiedEvent
		wantDetail   string
		wantAmount   string
		detailPrefix bool
	}{
		{
			name:       "pumpfun buy",
			event:      tradeEvent(1_500_000_000, true),
			wantDetail: "buy So11..1112",
			wantAmount: "1.5000 SOL",
		},
		{
			name:       "pumpfun sell",
			event:      tradeEvent(250_000_000, false),
			wantDetail: "sell So11..1112",
			wantAmount: "0.2500 SOL",
		},
		{
			name: "pumpswap sell quotes output",
			event: &events.UnifiedEvent{
				Protocol: types.ProtocolPumpSwap,
				Kind:     events.KindSell,
				Payload: &events.PumpSwapSell{
					QuoteAmountOut: 2_000_000_000,
				},
			},
			wantDetail:   "1111",
			wantAmount:   "2.0000 SOL",
			detailPrefix: true,
		},
		{
			name: "bonk sell uses amount out",
			event: &events.UnifiedEvent{
				Protocol: types.ProtocolBonk,
				Kind:     events.KindTrade,
				Payload: &events.BonkTrade{
					TradeDirection: 1,
					AmountIn:       123,
					AmountOut:      3_000_000_000,
				},
			},
			wantDetail:   "sell",
			wantAmount:   "3.0000 SOL",
			detailPrefix: true,
		},
		{
			name: "ammv4 raw units",
			event: &events.UnifiedEvent{
				Protocol: types.ProtocolRaydiumAmmV4,
				Kind:     events.KindSwapBaseIn,
				Payload: &events.RaydiumAmmV4SwapBaseIn{
					AmountIn:  2_500_000,
					OutAmount: 900,
					Direction: 1,
				},
			},
			wantDetail: "coin>pc",
			wantAmount: "2.5M > 900",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			detail, amount := describe(tc.event)
			if tc.detailPrefix {
				if !strings.HasPrefix(detail, tc.wantDetail) {
					t.Errorf("detail = %q, want prefix %q", detail, tc.wantDetail)
				}
			} else if detail != tc.wantDetail {
				t.Errorf("detail = %q, want %q", detail, tc.wantDetail)
			}
			if amount != tc.wantAmount {
				t.Errorf("amount = %q, want %q", amount, tc.wantAmount)
			}
		})
	}
}

func TestMonitorNewestRowFirst(t *testing.T) {
	ch := make(chan *events.UnifiedEvent)
	m := NewMonitor(ch, nil, zap.NewNop())

	var model tea.Model = m
	model, _ = model.Update(EventMsg{Event: tradeEvent(1_000_000_000, true)})
	model, cmd := model.Update(EventMsg{Event: tradeEvent(2_000_000_000, false)})
	if cmd == nil {
		t.Fatal("expected re-armed wait command after event")
	}

	mon := model.(*Monitor)
	rows := mon.table.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][3] != "sell So11..1112" {
		t.Errorf("newest row first: got detail %q", rows[0][3])
	}
	if mon.buys != 1 || mon.sells != 1 {
		t.Errorf("counters: buys=%d sells=%d, want 1/1", mon.buys, mon.sells)
	}
}

func TestMonitorRowCap(t *testing.T) {
	ch := make(chan *events.UnifiedEvent)
	var model tea.Model = NewMonitor(ch, nil, zap.NewNop())

	for i := 0; i < maxRows+25; i++ {
		model, _ = model.Update(EventMsg{Event: tradeEvent(uint64(i), true)})
	}

	mon := model.(*Monitor)
	if got := len(mon.table.Rows()); got != maxRows {
		t.Errorf("rows = %d, want cap %d", got, maxRows)
	}
	if mon.received != uint64(maxRows+25) {
		t.Errorf("received = %d, want %d", mon.received, maxRows+25)
	}
}

func TestMonitorQuitKey(t *testing.T) {
	ch := make(chan *events.UnifiedEvent)
	var model tea.Model = NewMonitor(ch, nil, zap.NewNop())

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected tea.QuitMsg, got %T", cmd())
	}
}

func TestMonitorStreamClosed(t *testing.T) {
	ch := make(chan *events.UnifiedEvent)
	close(ch)

	m := NewMonitor(ch, nil, zap.NewNop())
	msg := m.waitForEvent()()
	if _, ok := msg.(streamClosedMsg); !ok {
		t.Fatalf("expected streamClosedMsg, got %T", msg)
	}

	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model, _ = model.Update(msg)
	if !strings.Contains(model.View(), "stream closed") {
		t.Error("view should mention closed stream")
	}
}

func TestShortKey(t *testing.T) {
	key := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	if got := shortKey(key); got != "So11..1112" {
		t.Errorf("shortKey = %q", got)
	}
}

func TestCompactAmount(t *testing.T) {
	cases := map[uint64]string{
		900:               "900",
		25_000:            "25.0K",
		2_500_000:         "2.5M",
		7_100_000_000:     "7.1B",
		3_200_000_000_000: "3.2T",
	}
	for in, want := range cases {
		if got := compactAmount(in); got != want {
			t.Errorf("compactAmount(%d) = %q, want %q", in, got, want)
		}
	}
}
