package subscription

import (
	"sync"
	"testing"
	"time"

	"terminal-core/internal/events"
	"terminal-core/pkg/ctp"
)

// fakeMarket records subscribe traffic without answering.
type fakeMarket struct {
	mu         sync.Mutex
	subCalls   [][]string
	unsubCalls [][]string
	retCode    int
}

func (f *fakeMarket) RegisterSPI(ctp.MarketSPI)        {}
func (f *fakeMarket) RegisterFront(string)             {}
func (f *fakeMarket) Init()                            {}
func (f *fakeMarket) Release()                         {}
func (f *fakeMarket) ReqUserLogin(*ctp.ReqUserLogin) int { return 0 }

func (f *fakeMarket) SubscribeMarketData(ids []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retCode != 0 {
		return f.retCode
	}
	f.subCalls = append(f.subCalls, append([]string(nil), ids...))
	return 0
}

func (f *fakeMarket) UnSubscribeMarketData(ids []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubCalls = append(f.unsubCalls, append([]string(nil), ids...))
	return 0
}

func (f *fakeMarket) wireCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.subCalls {
		for _, got := range call {
			if got == id {
				n++
			}
		}
	}
	return n
}

func TestSubscribeIdempotent(t *testing.T) {
	md := &fakeMarket{}
	bus := events.NewBus()
	defer bus.Close()
	m := NewManager(md, bus)

	for i := 0; i < 5; i++ {
		if err := m.Subscribe([]string{"rb2610"}); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
	}
	if n := md.wireCount("rb2610"); n != 1 {
		t.Fatalf("wire subscribes = %d, want 1", n)
	}
	if st, ok := m.Status("rb2610"); !ok || st != StatusPending {
		t.Fatalf("status = %v, %v; want pending", st, ok)
	}

	// Still idempotent once active.
	m.HandleSubResponse("rb2610", &ctp.RspInfo{})
	if err := m.Subscribe([]string{"rb2610"}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if n := md.wireCount("rb2610"); n != 1 {
		t.Fatalf("wire subscribes after active = %d, want 1", n)
	}
}

func TestSubscribeBatchesNewInstruments(t *testing.T) {
	md := &fakeMarket{}
	bus := events.NewBus()
	defer bus.Close()
	m := NewManager(md, bus)

	if err := m.Subscribe([]string{"rb2610", "IF2609", "rb2610", ""}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	md.mu.Lock()
	calls := len(md.subCalls)
	var batch []string
	if calls > 0 {
		batch = md.subCalls[0]
	}
	md.mu.Unlock()
	if calls != 1 || len(batch) != 2 {
		t.Fatalf("calls = %d batch = %v, want one call with two instruments", calls, batch)
	}
}

func TestRejectionRetriesThenFails(t *testing.T) {
	md := &fakeMarket{}
	bus := events.NewBus()
	defer bus.Close()
	failed, unsub := bus.Subscribe(4, events.TypeSubscriptionFailed)
	defer unsub()

	m := NewManager(md, bus)
	if err := m.Subscribe([]string{"bad001"}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	reject := &ctp.RspInfo{ErrorID: 4, ErrorMsg: ctp.EncodeText("订阅失败")}
	// maxRetries rejections keep retrying, the next one parks it.
	for i := 0; i < maxRetries; i++ {
		m.HandleSubResponse("bad001", reject)
		if st, _ := m.Status("bad001"); st != StatusPending {
			t.Fatalf("after rejection %d status = %v, want pending", i+1, st)
		}
	}
	m.HandleSubResponse("bad001", reject)
	if st, _ := m.Status("bad001"); st != StatusFailed {
		t.Fatalf("status = %v, want failed", st)
	}

	select {
	case e := <-failed:
		payload := e.Payload.(events.SubscriptionFailedPayload)
		if payload.InstrumentID != "bad001" || payload.Code != 4 {
			t.Fatalf("unexpected payload %+v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no SubscriptionFailed event")
	}

	// Each rejection before parking triggered one retry request.
	if n := md.wireCount("bad001"); n != 1+maxRetries {
		t.Fatalf("wire subscribes = %d, want %d", n, 1+maxRetries)
	}
}

func TestUnsubscribeRemoves(t *testing.T) {
	md := &fakeMarket{}
	bus := events.NewBus()
	defer bus.Close()
	m := NewManager(md, bus)

	m.Subscribe([]string{"rb2610"})
	m.HandleSubResponse("rb2610", &ctp.RspInfo{})
	if err := m.Unsubscribe([]string{"rb2610", "never-subscribed"}); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if _, ok := m.Status("rb2610"); ok {
		t.Fatalf("instrument still in the book after unsubscribe")
	}
	md.mu.Lock()
	defer md.mu.Unlock()
	if len(md.unsubCalls) != 1 || len(md.unsubCalls[0]) != 1 {
		t.Fatalf("unsub calls = %v, want one call for rb2610 only", md.unsubCalls)
	}
}

func TestReplayAllResubscribesEverything(t *testing.T) {
	md := &fakeMarket{}
	bus := events.NewBus()
	defer bus.Close()
	m := NewManager(md, bus)

	m.Subscribe([]string{"rb2610", "IF2609", "au2612"})
	m.HandleSubResponse("rb2610", &ctp.RspInfo{})
	m.HandleSubResponse("IF2609", &ctp.RspInfo{})

	m.Invalidate()
	m.ReplayAll()

	for _, id := range []string{"rb2610", "IF2609", "au2612"} {
		if st, ok := m.Status(id); !ok || st != StatusPending {
			t.Fatalf("after replay %s status = %v, %v; want pending", id, st, ok)
		}
		if n := md.wireCount(id); n != 2 {
			t.Fatalf("wire subscribes for %s = %d, want 2 (initial + replay)", id, n)
		}
	}

	st := m.Stats()
	if st.Total != 3 || st.Pending != 3 {
		t.Fatalf("stats = %+v, want 3 pending of 3", st)
	}
}

func TestSubscribeWireRejection(t *testing.T) {
	md := &fakeMarket{retCode: -1}
	bus := events.NewBus()
	defer bus.Close()
	m := NewManager(md, bus)

	if err := m.Subscribe([]string{"rb2610"}); err == nil {
		t.Fatalf("Subscribe() should fail when the request is rejected locally")
	}
	if _, ok := m.Status("rb2610"); ok {
		t.Fatalf("rejected request must not leave a book entry")
	}
}

func TestRecordTick(t *testing.T) {
	md := &fakeMarket{}
	bus := events.NewBus()
	defer bus.Close()
	m := NewManager(md, bus)

	m.Subscribe([]string{"rb2610"})
	m.HandleSubResponse("rb2610", &ctp.RspInfo{})
	m.RecordTick("rb2610")
	m.RecordTick("rb2610")
	m.RecordTick("IF2609") // not subscribed, ignored

	info, ok := m.Info("rb2610")
	if !ok || info.Status != StatusActive || info.DataCount != 2 {
		t.Fatalf("info = %+v, %v", info, ok)
	}
	if _, ok := m.Info("IF2609"); ok {
		t.Fatalf("unsubscribed instrument has a book entry")
	}
}
