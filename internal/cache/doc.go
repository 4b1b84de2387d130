// Package cache provides a thread-safe TTL value cache with a size bound,
// used to memoize auxiliary lookup results.
package cache
