// Package rest is the HTTP client for the marketplace REST collaborator.
// It normalizes the backend's inconsistent response envelopes and tolerant
// wire types (string-or-number ids, mixed timestamp formats) into stable
// record structs.
package rest
