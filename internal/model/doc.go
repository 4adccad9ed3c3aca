// Package model defines shared data types used across the termfeed client.
//
// Conventions:
//   - Prices: decimal probabilities in [0.00, 1.00]
//   - Quantities: decimal contract counts
//   - Timestamps: time.Time in UTC (RFC 3339 on the wire)
//   - IDs: platform-assigned strings (trades, news items)
package model
