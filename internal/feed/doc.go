// Package feed reduces dispatched messages into per-market live state.
//
// A MarketFeed owns the reduced view for one (platform, market) pair:
//   - last price point (last write wins)
//   - order book (any update replaces the affected state)
//   - recent trades, newest first, capped and deduplicated by id
//   - market news, newest first, capped and deduplicated by id
//
// The Client bundles session, registry, bus, and feeds into the single
// entry point consumers hold. Feeds are created lazily by Watch and torn
// down by Unwatch. All mutation happens on the dispatch goroutine; reads
// return copies.
package feed
