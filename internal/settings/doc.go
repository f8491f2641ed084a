// Package settings resolves configuration keys across persistent
// overrides and YAML layers, redirecting marked values to the process
// environment or the secrets manager.
//
// Precedence, first hit wins:
//
//	APP override store > USER override store >
//	./config/config.yaml (300) > app data (200) > user data (100)
//
// Resolved strings may carry an indirection marker:
//
//	ENV/<name>               process environment variable <name>
//	SEC/<name>               secret <name> from any store
//	AWS_Secret#<name>        secret <name> from the AWS store only
//	Azure_Secret#<name>      secret <name> from the Azure store only
//	GCP_Secret#<name>        secret <name> from the GCP store only
package settings
