// Package poller implements the periodic snapshot poller.
//
// The poller:
//   - Re-pulls every tracked market on a fixed interval
//   - Fans requests out across a bounded worker pool
//   - Logs and skips per-market failures so one market cannot stall a cycle
//   - Feeds results to the reconciler's pull side
package poller
