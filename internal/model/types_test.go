package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// TestSubscriptionKey validates that the derived key uniquely identifies a
// channel and that equal triples collapse to the same key.
func TestSubscriptionKey(t *testing.T) {
	tests := []struct {
		name string
		sub  Subscription
		want string
	}{
		{
			name: "price channel",
			sub:  Subscription{Kind: KindPrice, Platform: PlatformKalshi, MarketID: "FED-25DEC"},
			want: "price:kalshi:FED-25DEC",
		},
		{
			name: "order book channel",
			sub:  Subscription{Kind: KindOrderBook, Platform: PlatformPolymarket, MarketID: "0xabc123"},
			want: "order_book:polymarket:0xabc123",
		},
		{
			name: "trades channel",
			sub:  Subscription{Kind: KindTrades, Platform: PlatformKalshi, MarketID: "FED-25DEC"},
			want: "trades:kalshi:FED-25DEC",
		},
		{
			name: "market news channel",
			sub:  Subscription{Kind: KindMarketNews, Platform: PlatformKalshi, MarketID: "FED-25DEC"},
			want: "market_news:kalshi:FED-25DEC",
		},
		{
			name: "global news ignores platform and market",
			sub:  Subscription{Kind: KindGlobalNews},
			want: "global_news:__global_news__",
		},
		{
			name: "global news with stray fields still collapses",
			sub:  Subscription{Kind: KindGlobalNews, Platform: PlatformKalshi, MarketID: "IGNORED"},
			want: "global_news:__global_news__",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubscriptionKeyDistinguishesChannels(t *testing.T) {
	subs := []Subscription{
		{Kind: KindPrice, Platform: PlatformKalshi, MarketID: "M1"},
		{Kind: KindPrice, Platform: PlatformPolymarket, MarketID: "M1"},
		{Kind: KindPrice, Platform: PlatformKalshi, MarketID: "M2"},
		{Kind: KindOrderBook, Platform: PlatformKalshi, MarketID: "M1"},
		{Kind: KindTrades, Platform: PlatformKalshi, MarketID: "M1"},
		{Kind: KindMarketNews, Platform: PlatformKalshi, MarketID: "M1"},
		{Kind: KindGlobalNews},
	}

	seen := make(map[string]Subscription, len(subs))
	for _, s := range subs {
		key := s.Key()
		if prev, dup := seen[key]; dup {
			t.Errorf("key %q collides: %+v and %+v", key, prev, s)
		}
		seen[key] = s
	}
}

func TestPlatformValid(t *testing.T) {
	if !PlatformKalshi.Valid() {
		t.Error("kalshi should be valid")
	}
	if !PlatformPolymarket.Valid() {
		t.Error("polymarket should be valid")
	}
	if Platform("nyse").Valid() {
		t.Error("unknown platform should be invalid")
	}
	if Platform("").Valid() {
		t.Error("empty platform should be invalid")
	}
}

func TestConnStateString(t *testing.T) {
	tests := []struct {
		state ConnState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateReconnecting, "reconnecting"},
		{ConnState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ConnState(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

// TestOrderBookNormalize validates the ordering invariant: bids descending,
// asks ascending, on both the yes and no sides.
func TestOrderBookNormalize(t *testing.T) {
	book := OrderBook{
		MarketID: "FED-25DEC",
		Platform: PlatformKalshi,
		YesBids: []BookLevel{
			{Price: dec("0.40"), Quantity: dec("100")},
			{Price: dec("0.45"), Quantity: dec("50")},
			{Price: dec("0.42"), Quantity: dec("75")},
		},
		YesAsks: []BookLevel{
			{Price: dec("0.50"), Quantity: dec("30")},
			{Price: dec("0.47"), Quantity: dec("60")},
			{Price: dec("0.49"), Quantity: dec("10")},
		},
		NoBids: []BookLevel{
			{Price: dec("0.51"), Quantity: dec("20")},
			{Price: dec("0.53"), Quantity: dec("40")},
		},
		NoAsks: []BookLevel{
			{Price: dec("0.58"), Quantity: dec("15")},
			{Price: dec("0.55"), Quantity: dec("25")},
		},
	}

	book.Normalize()

	wantYesBids := []string{"0.45", "0.42", "0.4"}
	for i, want := range wantYesBids {
		if got := book.YesBids[i].Price.String(); got != want {
			t.Errorf("YesBids[%d].Price = %s, want %s", i, got, want)
		}
	}
	wantYesAsks := []string{"0.47", "0.49", "0.5"}
	for i, want := range wantYesAsks {
		if got := book.YesAsks[i].Price.String(); got != want {
			t.Errorf("YesAsks[%d].Price = %s, want %s", i, got, want)
		}
	}
	wantNoBids := []string{"0.53", "0.51"}
	for i, want := range wantNoBids {
		if got := book.NoBids[i].Price.String(); got != want {
			t.Errorf("NoBids[%d].Price = %s, want %s", i, got, want)
		}
	}
	wantNoAsks := []string{"0.55", "0.58"}
	for i, want := range wantNoAsks {
		if got := book.NoAsks[i].Price.String(); got != want {
			t.Errorf("NoAsks[%d].Price = %s, want %s", i, got, want)
		}
	}
}

func TestOrderBookBestLevels(t *testing.T) {
	book := OrderBook{
		YesBids: []BookLevel{
			{Price: dec("0.45"), Quantity: dec("50")},
			{Price: dec("0.42"), Quantity: dec("75")},
		},
		YesAsks: []BookLevel{
			{Price: dec("0.47"), Quantity: dec("60")},
			{Price: dec("0.49"), Quantity: dec("10")},
		},
	}

	bid, ok := book.BestYesBid()
	if !ok {
		t.Fatal("BestYesBid() reported empty side")
	}
	if bid.Price.String() != "0.45" {
		t.Errorf("BestYesBid().Price = %s, want 0.45", bid.Price)
	}

	ask, ok := book.BestYesAsk()
	if !ok {
		t.Fatal("BestYesAsk() reported empty side")
	}
	if ask.Price.String() != "0.47" {
		t.Errorf("BestYesAsk().Price = %s, want 0.47", ask.Price)
	}

	var empty OrderBook
	if _, ok := empty.BestYesBid(); ok {
		t.Error("BestYesBid() on empty book should report false")
	}
	if _, ok := empty.BestYesAsk(); ok {
		t.Error("BestYesAsk() on empty book should report false")
	}
}

func TestOrderBookEmpty(t *testing.T) {
	var book OrderBook
	if !book.Empty() {
		t.Error("zero book should be empty")
	}
	book.NoAsks = []BookLevel{{Price: dec("0.5"), Quantity: dec("1")}}
	if book.Empty() {
		t.Error("book with a no-ask level should not be empty")
	}
}

// TestOrderBookClone validates that mutating a clone leaves the original
// untouched.
func TestOrderBookClone(t *testing.T) {
	orig := OrderBook{
		MarketID: "FED-25DEC",
		Platform: PlatformKalshi,
		YesBids:  []BookLevel{{Price: dec("0.45"), Quantity: dec("50")}},
	}

	clone := orig.Clone()
	clone.YesBids[0].Quantity = dec("9999")
	clone.YesBids = append(clone.YesBids, BookLevel{Price: dec("0.44"), Quantity: dec("1")})

	if got := orig.YesBids[0].Quantity.String(); got != "50" {
		t.Errorf("original quantity mutated through clone: got %s, want 50", got)
	}
	if len(orig.YesBids) != 1 {
		t.Errorf("original level count changed: got %d, want 1", len(orig.YesBids))
	}
}

func TestCandleBullish(t *testing.T) {
	up := Candle{Open: dec("0.40"), Close: dec("0.45")}
	if !up.Bullish() {
		t.Error("close above open should be bullish")
	}
	down := Candle{Open: dec("0.45"), Close: dec("0.40")}
	if down.Bullish() {
		t.Error("close below open should not be bullish")
	}
	flat := Candle{Open: dec("0.45"), Close: dec("0.45")}
	if flat.Bullish() {
		t.Error("flat candle should not be bullish")
	}
}

func TestNewOrderBook(t *testing.T) {
	before := time.Now().UTC()
	book := NewOrderBook(PlatformPolymarket, "0xabc")
	after := time.Now().UTC()

	if book.Platform != PlatformPolymarket {
		t.Errorf("Platform = %q, want polymarket", book.Platform)
	}
	if book.MarketID != "0xabc" {
		t.Errorf("MarketID = %q, want 0xabc", book.MarketID)
	}
	if !book.Empty() {
		t.Error("new book should be empty")
	}
	if book.Timestamp.Before(before) || book.Timestamp.After(after) {
		t.Errorf("Timestamp %v outside [%v, %v]", book.Timestamp, before, after)
	}
}
