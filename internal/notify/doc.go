// Package notify delivers marketplace notifications to UI consumers.
//
// # Delivery Strategy
//
// Push over the channel is preferred. When the channel fails before its
// first connection, or degrades after exhausting reconnects, the service
// latches into REST polling for the remainder of the session. The fallback
// is one-way: the source never oscillates back to push.
//
// A session without a usable local identity (an administrative role, or a
// credential missing the role's id) has no personal topic to subscribe. Push
// is then parked behind a covering poll rather than latched; a role change
// that supplies an identity resumes push delivery.
//
// # Deduplication
//
// Consumers receive each unread notification once. The gate remembers only
// the id of the most recently emitted unread notification, which is exactly
// enough: each poll cycle surfaces only the newest unread record, so the
// same latest id re-observed across cycles (or across a push-to-poll
// switch) is the only duplicate source.
//
// # Classification
//
// Records without a known category are classified by keyword against the
// title and body, in priority order: success, error, warning, then info.
package notify
