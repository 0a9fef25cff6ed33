package settlement

import (
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"terminal-core/internal/errs"
	"terminal-core/internal/events"
	"terminal-core/pkg/ctp"
)

// fakeTrader answers settlement requests synchronously via the hooks.
type fakeTrader struct {
	mu           sync.Mutex
	queryCalls   int
	confirmCalls int
	confirmCode  int
}

func (f *fakeTrader) RegisterSPI(ctp.TraderSPI)            {}
func (f *fakeTrader) RegisterFront(string)                 {}
func (f *fakeTrader) Init()                                {}
func (f *fakeTrader) Release()                             {}
func (f *fakeTrader) ReqUserLogin(*ctp.ReqUserLogin) int   { return 0 }
func (f *fakeTrader) ReqOrderInsert(*ctp.InputOrder) int   { return 0 }
func (f *fakeTrader) ReqOrderAction(*ctp.InputOrderAction) int { return 0 }
func (f *fakeTrader) ReqQryTradingAccount() int            { return 0 }
func (f *fakeTrader) ReqQryInvestorPosition(string) int    { return 0 }
func (f *fakeTrader) ReqQryOrder(string) int               { return 0 }
func (f *fakeTrader) ReqQryTrade(string) int               { return 0 }

func (f *fakeTrader) ReqQrySettlementInfo(string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	return 0
}

func (f *fakeTrader) ReqSettlementInfoConfirm() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmCalls++
	return f.confirmCode
}

const statement = `结算单 20260829
客户权益: 1,050,000.00
平仓盈亏: 60,000.00
手续费: 1,200.00
入 金: 0.00
出 金: 10,000.00
`

func chunks(day, content string) []*ctp.SettlementInfoField {
	raw := ctp.EncodeText(content)
	half := len(raw) / 2
	return []*ctp.SettlementInfoField{
		{TradingDay: day, Content: raw[:half]},
		{TradingDay: day, Content: raw[half:]},
	}
}

func TestChunksAssembleDocument(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ready, unsub := bus.Subscribe(4, events.TypeSettlementReady)
	defer unsub()
	m := NewManager(&fakeTrader{}, bus)

	parts := chunks("20260829", statement)
	m.HandleInfo(parts[0], false)
	if _, ok := m.Pending(); ok {
		t.Fatalf("document pending before the last chunk")
	}
	m.HandleInfo(parts[1], true)

	doc, ok := m.Pending()
	if !ok {
		t.Fatalf("no pending document after last chunk")
	}
	if doc.TradingDay != "20260829" || doc.Content != statement {
		t.Fatalf("document = %+v", doc)
	}
	if math.Abs(doc.Summary.Balance-1_050_000) > 1e-9 {
		t.Fatalf("Balance = %v, want 1050000", doc.Summary.Balance)
	}
	if math.Abs(doc.Summary.CloseProfit-60_000) > 1e-9 {
		t.Fatalf("CloseProfit = %v", doc.Summary.CloseProfit)
	}
	if math.Abs(doc.Summary.Commission-1_200) > 1e-9 {
		t.Fatalf("Commission = %v", doc.Summary.Commission)
	}
	if math.Abs(doc.Summary.Withdrawal-10_000) > 1e-9 {
		t.Fatalf("Withdrawal = %v", doc.Summary.Withdrawal)
	}

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatalf("no SettlementReady event")
	}
}

func TestEmptyStatementIsNotPending(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	m := NewManager(&fakeTrader{}, bus)

	m.HandleInfo(nil, true)
	if _, ok := m.Pending(); ok {
		t.Fatalf("empty response produced a pending document")
	}
}

func TestConfirmWithoutPending(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	td := &fakeTrader{}
	m := NewManager(td, bus)

	if err := m.Confirm(); !errs.Is(err, errs.KindState) {
		t.Fatalf("Confirm() error = %v, want state error", err)
	}
	if td.confirmCalls != 0 {
		t.Fatalf("confirm reached the wire with nothing pending")
	}
}

func TestConfirmFlow(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	confirmed, unsub := bus.Subscribe(4, events.TypeSettlementConfirmed)
	defer unsub()
	td := &fakeTrader{}
	m := NewManager(td, bus)

	for i, part := range chunks("20260829", statement) {
		m.HandleInfo(part, i == 1)
	}
	if err := m.Confirm(); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	m.HandleConfirm(&ctp.SettlementInfoConfirmField{ConfirmDate: "20260829"}, &ctp.RspInfo{})

	if _, ok := m.Pending(); ok {
		t.Fatalf("document still pending after confirmation")
	}
	archive := m.Archive()
	if len(archive) != 1 || !archive[0].Confirmed {
		t.Fatalf("archive = %+v", archive)
	}

	select {
	case <-confirmed:
	case <-time.After(2 * time.Second):
		t.Fatalf("no SettlementConfirmed event")
	}

	// Confirming again is a state error.
	if err := m.Confirm(); !errs.Is(err, errs.KindState) {
		t.Fatalf("second Confirm() error = %v, want state error", err)
	}
}

func TestReport(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	td := &fakeTrader{}
	m := NewManager(td, bus)

	days := []struct {
		day    string
		profit float64
	}{
		{"20260827", 5000},
		{"20260828", -2000},
		{"20260829", 8000},
	}
	for _, d := range days {
		content := "平仓盈亏: " + strconv.FormatFloat(d.profit, 'f', 2, 64) + "\n手续费: 0\n"
		m.HandleInfo(&ctp.SettlementInfoField{
			TradingDay: d.day,
			Content:    ctp.EncodeText(content),
		}, true)
		if err := m.Confirm(); err != nil {
			t.Fatalf("Confirm(%s) error = %v", d.day, err)
		}
		m.HandleConfirm(&ctp.SettlementInfoConfirmField{}, &ctp.RspInfo{})
	}

	r := m.Report()
	if r.Days != 3 || r.WinningDays != 2 {
		t.Fatalf("report = %+v", r)
	}
	if math.Abs(r.WinRate-2.0/3.0) > 1e-9 {
		t.Fatalf("WinRate = %v", r.WinRate)
	}
	if r.MaxDailyProfit != 8000 || r.MaxDailyLoss != -2000 {
		t.Fatalf("extremes = %v/%v", r.MaxDailyProfit, r.MaxDailyLoss)
	}
	if r.TotalProfit != 11000 {
		t.Fatalf("TotalProfit = %v", r.TotalProfit)
	}
}

func TestParseSummarySkipsUnknownLines(t *testing.T) {
	s := parseSummary("随便什么: abc\nnot a pair\n手续费: 12.5\n")
	if s.Commission != 12.5 {
		t.Fatalf("Commission = %v, want 12.5", s.Commission)
	}
	if s.Balance != 0 {
		t.Fatalf("Balance = %v, want untouched", s.Balance)
	}
}
