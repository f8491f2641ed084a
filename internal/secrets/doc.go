// Package secrets owns the ordered set of secret stores and routes
// lookups and writes to them by scope.
//
// Stores are consulted in ascending priority order:
//
//	USER (1) < APP (2) < AWS (3) < AZURE (4) < GCP (5)
//
// An unscoped Get returns the first non-empty value. A scoped Get, Set or
// Delete touches only the store whose priority equals the scope.
package secrets
