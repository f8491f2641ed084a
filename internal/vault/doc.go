// Package vault implements the encrypted local secret container used by
// the USER and APP stores.
//
// A container is a single bbolt file with two buckets:
//
//	config   version, KDF salt and iteration count (plaintext)
//	payload  AES-256-GCM sealed JSON of groups and entries
//
// The encryption key is derived from the container password with
// PBKDF2-SHA256. The derived key is cached in memory between Open and
// Close, so Save and Reload do not pay the KDF cost again. The bbolt file
// is opened only for the duration of each read or write, which lets two
// processes share one container.
//
// New containers start from a template sealed with TemplatePassword.
// Callers open the template, call SetPassword and Save to re-key it.
package vault
