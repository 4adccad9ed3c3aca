// Package protocol implements the JSON wire protocol of the market data
// WebSocket endpoint.
//
// Every frame is a JSON object with a top-level "type" discriminator:
//   - Inbound: subscribed, unsubscribed, price_update, order_book_update,
//     trade_update, news_update, error, pong, connection_status
//   - Outbound: subscribe, unsubscribe, ping
//
// Decode parses inbound frames into typed messages. The Encode helpers build
// outbound frames. Prices and quantities travel as decimal strings, timestamps
// as RFC 3339 except ping/pong which use unix milliseconds.
package protocol
