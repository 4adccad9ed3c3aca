// Package subscription tracks which feed channels the process wants open.
//
// The registry is the single source of truth for the desired subscription
// set. Subscribing sends the wire command when a session is attached and
// always records intent, so the session can replay the full set in
// insertion order after any reconnect. Keys deduplicate consumers: two
// components interested in the same channel produce one wire subscription.
package subscription
