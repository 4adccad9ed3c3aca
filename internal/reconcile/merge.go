package reconcile

import "github.com/openpredict/termfeed/internal/model"

// Source identifies which input produced a merged value.
type Source string

const (
	SourcePush Source = "push"
	SourcePull Source = "pull"
	SourceNone Source = "none"
)

// MergePrice picks the authoritative price pair. Push wins whenever
// present; pulled is the fallback before the first push frame.
func MergePrice(push, pulled *model.PricePoint) (model.PricePoint, Source) {
	if push != nil {
		return *push, SourcePush
	}
	if pulled != nil {
		return *pulled, SourcePull
	}
	return model.PricePoint{}, SourceNone
}

// MergeBook picks the authoritative book. Push wins whenever present;
// pulled is the fallback before the first push frame. The returned book
// is a copy, safe to hand to callers.
func MergeBook(push, pulled *model.OrderBook) (model.OrderBook, Source) {
	if push != nil {
		return push.Clone(), SourcePush
	}
	if pulled != nil {
		return pulled.Clone(), SourcePull
	}
	return model.OrderBook{}, SourceNone
}

// MergeTrades unions both logs with push entries strictly first, drops
// pulled trades whose id already appears on the push side, and truncates
// to limit. The second return is the number of pulled duplicates dropped.
// Trades without ids cannot collide and are always kept.
func MergeTrades(push, pulled []model.Trade, limit int) ([]model.Trade, int) {
	seen := make(map[string]struct{}, len(push))
	merged := make([]model.Trade, 0, len(push)+len(pulled))

	for _, t := range push {
		if t.ID != "" {
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
		}
		merged = append(merged, t)
	}

	deduped := 0
	for _, t := range pulled {
		if t.ID != "" {
			if _, dup := seen[t.ID]; dup {
				deduped++
				continue
			}
			seen[t.ID] = struct{}{}
		}
		merged = append(merged, t)
	}

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, deduped
}
