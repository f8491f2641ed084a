// Package secretstore defines the backend store contract used by the secrets manager.
//
// A backend store is one secret-holding adapter: the encrypted local vault (one per
// scope) or a remote cloud secret manager. Every store carries a Priority, and the
// secrets manager keeps its stores sorted by that ordinal so that unscoped lookups
// always scan in the same order:
//
//	USER < APPLICATION < AWS < AZURE < GCP
//
// # Architecture Overview
//
//	┌────────────────────────────────────────────────────────────┐
//	│            Layered Settings Resolver (internal/settings)   │
//	└──────────────────────────┬─────────────────────────────────┘
//	                           │ SEC/ and <PROVIDER>_Secret# markers
//	┌──────────────────────────▼─────────────────────────────────┐
//	│              Secrets Manager (internal/secrets)            │
//	└──────────────────────────┬─────────────────────────────────┘
//	                           │ Store interface (this package)
//	┌──────────────────────────▼─────────────────────────────────┐
//	│             Store implementations (internal/providers)     │
//	│   local vault (USER, APPLICATION)  AWS  Azure  GCP         │
//	└────────────────────────────────────────────────────────────┘
//
// # Store Contract
//
// Get never fails: a missing key, an empty value or a backend error all yield the
// caller's default, and remote stores log the error. Set and Delete surface failures
// as *StoreError. Construction of a store proves availability up front (remote stores
// list one secret), so an unreachable backend fails with a StoreError when it is
// built, not on the first lookup.
//
// # Entry Tags
//
// Local vault entries carry a Tag. TagEnv entries are exported into the process
// environment when their store is opened. TagHidden entries are left out of name
// listings unless hidden entries are requested explicitly.
//
// # Security Considerations
//
// Store implementations must never log secret values; wrap them in logging.Secret
// when they need to appear in a message.
package secretstore
