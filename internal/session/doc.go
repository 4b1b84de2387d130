// Package session holds the bearer credential and role-scoped identity of
// the signed-in account, and broadcasts role and credential changes to the
// components that must react to them.
package session
