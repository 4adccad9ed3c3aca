// Package dispatch fans decoded feed messages out to registered handlers.
//
// Dispatch runs synchronously on the caller's goroutine in registration
// order. A panicking handler is recovered and logged so it cannot take down
// the session read loop or starve the handlers registered after it.
package dispatch
