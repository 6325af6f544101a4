// Package events defines the relay events emitted on the event bus.
//
// Available event types:
//   - SignalEvent: a signal received in an inbound event
//   - OutcomeEvent: the classified result of a command run
//   - SessionFailureEvent: a request aborted by the session preconditions
package events
