// Package fakes provides test doubles for the store interfaces and the
// cloud SDK client interfaces the stores depend on.
//
// Fakes keep state in memory and are safe for concurrent use. They are
// hand written so tests control failures per key.
//
//	client := fakes.NewFakeSecretsManagerClient()
//	client.AddSecretString("db/password", "secret123")
//	store, err := providers.NewAWSSecretsManagerStore(ctx, cfg,
//	    providers.WithSecretsManagerClient(client),
//	    providers.WithAWSExecutor(exec.NewFakeExecutor("aws")))
package fakes
