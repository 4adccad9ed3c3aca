package dispatch

import (
	"fmt"
	"sync"
	"testing"

	"github.com/openpredict/termfeed/internal/model"
	"github.com/openpredict/termfeed/internal/protocol"
)

func priceMsg(marketID string) protocol.Inbound {
	return protocol.PriceUpdate{
		Platform: model.PlatformKalshi,
		MarketID: marketID,
	}
}

func TestBus_DispatchOrder(t *testing.T) {
	b := NewBus(nil)

	var order []int
	for i := 1; i <= 3; i++ {
		n := i
		b.Register(func(protocol.Inbound) {
			order = append(order, n)
		})
	}

	b.Dispatch(priceMsg("M1"))

	if len(order) != 3 {
		t.Fatalf("handlers called = %d, want 3", len(order))
	}
	for i, n := range order {
		if n != i+1 {
			t.Errorf("order[%d] = %d, want %d (registration order)", i, n, i+1)
		}
	}
}

func TestBus_Unregister(t *testing.T) {
	b := NewBus(nil)

	var first, second int
	unregister := b.Register(func(protocol.Inbound) { first++ })
	b.Register(func(protocol.Inbound) { second++ })

	b.Dispatch(priceMsg("M1"))
	unregister()
	b.Dispatch(priceMsg("M2"))

	if first != 1 {
		t.Errorf("first handler called %d times, want 1", first)
	}
	if second != 2 {
		t.Errorf("second handler called %d times, want 2", second)
	}

	// Double unregister is harmless.
	unregister()
	b.Dispatch(priceMsg("M3"))
	if second != 3 {
		t.Errorf("second handler called %d times, want 3", second)
	}
}

func TestBus_UnregisterDuringDispatch(t *testing.T) {
	b := NewBus(nil)

	var unregister func()
	var removedCalls int

	b.Register(func(protocol.Inbound) {
		unregister()
	})
	unregister = b.Register(func(protocol.Inbound) {
		removedCalls++
	})

	// The second handler still sees the message in flight when the first
	// removes it, but nothing afterwards.
	b.Dispatch(priceMsg("M1"))
	if removedCalls != 1 {
		t.Errorf("removed handler called %d times during dispatch, want 1", removedCalls)
	}

	b.Dispatch(priceMsg("M2"))
	if removedCalls != 1 {
		t.Errorf("removed handler called %d times after removal, want 1", removedCalls)
	}
}

func TestBus_HandlerPanicIsolation(t *testing.T) {
	b := NewBus(nil)

	var beforeCalls, afterCalls, panickyCalls int

	b.Register(func(protocol.Inbound) { beforeCalls++ })
	b.Register(func(msg protocol.Inbound) {
		panickyCalls++
		if msg.(protocol.PriceUpdate).MarketID == "M5" {
			panic("boom")
		}
	})
	b.Register(func(protocol.Inbound) { afterCalls++ })

	for i := 1; i <= 10; i++ {
		b.Dispatch(priceMsg(fmt.Sprintf("M%d", i)))
	}

	if beforeCalls != 10 {
		t.Errorf("handler before panicky one called %d times, want 10", beforeCalls)
	}
	if afterCalls != 10 {
		t.Errorf("handler after panicky one called %d times, want 10", afterCalls)
	}
	// The panicking handler stays registered and keeps receiving.
	if panickyCalls != 10 {
		t.Errorf("panicky handler called %d times, want 10", panickyCalls)
	}

	stats := b.Stats()
	if stats.HandlerPanics != 1 {
		t.Errorf("HandlerPanics = %d, want 1", stats.HandlerPanics)
	}
	if stats.Dispatched != 10 {
		t.Errorf("Dispatched = %d, want 10", stats.Dispatched)
	}
}

func TestBus_NoHandlers(t *testing.T) {
	b := NewBus(nil)

	b.Dispatch(priceMsg("M1"))

	if got := b.Stats().Dispatched; got != 1 {
		t.Errorf("Dispatched = %d, want 1", got)
	}
}

func TestBus_ConcurrentRegisterAndDispatch(t *testing.T) {
	b := NewBus(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				unregister := b.Register(func(protocol.Inbound) {})
				b.Dispatch(priceMsg("M"))
				unregister()
			}
		}()
	}
	wg.Wait()

	if got := b.Stats().Dispatched; got != 400 {
		t.Errorf("Dispatched = %d, want 400", got)
	}
}
