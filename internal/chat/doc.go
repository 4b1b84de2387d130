// Package chat maintains the client-side view of marketplace conversations.
//
// The Synchronizer owns per-conversation message lists, merging REST-fetched
// history with push-delivered messages and reconciling optimistic local
// sends. History loads are wholesale replacements ordered by sentAt.
// Authorship (IsMine) is derived per message against the identity id active
// for the session's current role, never persisted.
//
// The ListBuilder materializes the conversation list: duplicate ids from the
// backend collapse to the first occurrence, and listing/counterparty lookups
// are best-effort with id fallbacks.
package chat
