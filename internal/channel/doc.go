// Package channel manages the persistent push channel to the gateway.
//
// # Overview
//
// One WebSocket connection carries all push traffic for the session. The
// Manager owns the connection lifecycle; the Registry routes inbound MESSAGE
// frames to topic handlers.
//
// # Connection Lifecycle
//
// The channel moves through five states:
//
//	Disconnected -> Connecting -> Connected
//	Connected    -> Reconnecting (on transport failure)
//	Reconnecting -> Connected (on success) or Degraded (attempts exhausted)
//
// Reconnects use a fixed delay and a bounded attempt count. Degraded is
// terminal until an explicit Connect call. After every successful reconnect
// the Manager re-sends a SUBSCRIBE frame for each registered topic, so
// handler registrations survive transport failures.
//
// # Frames
//
// All traffic is JSON envelopes:
//
//	{"type": "MESSAGE", "topic": "/user/42/notifications", "payload": {...}}
//
// SUBSCRIBE and UNSUBSCRIBE manage topic routing server-side; SEND carries
// client-originated payloads; MESSAGE delivers pushes.
//
// # Dispatch Guarantees
//
// Handlers on one topic are invoked in registration order. A panicking
// handler is recovered and logged; remaining handlers still run.
//
// Admin sessions never open the channel.
package channel
