// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - WebSocket session state, connects, reconnects and heartbeat latency
//   - Frame decode rates and dispatch handler failures
//   - Subscription registry size
//   - REST snapshot request rates and latencies
//   - Reconciliation merges, deduplicated trades and discarded snapshots
package metrics
