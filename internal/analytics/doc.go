// Package analytics derives higher-level metrics from synchronized market
// state: order-book structure (imbalance, walls, heatmap), trade momentum
// over a sliding window, and a composite sentiment score.
//
// Every function is pure: inputs are immutable snapshots, decimals are
// converted to float64 at the boundary, and nothing here mutates reducer
// state. Book metrics are memoized by input identity through Cache;
// momentum is time-dependent and recomputes on every read.
package analytics
