// Package rest provides the client for the market data REST API.
//
// Endpoints:
//   - GET /markets/{platform}/{id}/orderbook
//   - GET /markets/{platform}/{id}/trades
//   - GET /markets/{platform}/{id}/history
//   - GET /markets/{platform}/{id}/news
//   - GET /news
//
// Requests are rate limited client side and retried with exponential backoff
// on 5xx and 429 responses.
package rest
