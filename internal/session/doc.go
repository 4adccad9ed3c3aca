// Package session implements the live WebSocket session to the feed.
//
// The session:
//   - Owns the single connection and its state machine
//   - Sends application-level ping frames and samples pong round trips
//   - Reconnects with exponential backoff after abnormal closes
//   - Replays the subscription registry after every connect
//   - Decodes inbound frames and hands them to the dispatch bus
package session
