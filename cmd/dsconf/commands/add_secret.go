package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/dsconf/internal/config"
	dserrors "github.com/systmms/dsconf/internal/errors"
	"github.com/systmms/dsconf/internal/secrets"
	"github.com/systmms/dsconf/pkg/secretstore"
)

func NewAddSecretCommand(cfg *config.Config) *cobra.Command {
	var (
		name   string
		value  string
		env    bool
		hidden bool
		scope  string
	)

	cmd := &cobra.Command{
		Use:   "add-secret",
		Short: "Add a secret to a local store",
		Long: `Add one secret to the USER store, or the store given by --scope.

Secrets added with --env are exported as NAME=value into the environment
every time the store is opened. Secrets added with --hidden are left out
of 'dsconf secret list' unless --all is given.

Examples:
  dsconf add-secret --name db_password --value hunter2
  dsconf add-secret --name API_TOKEN --value abc --env`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if env && hidden {
				return dserrors.UserError{
					Message:    "--env and --hidden cannot be combined",
					Suggestion: "Pick one tag per secret",
				}
			}

			p, err := parseScope(scope)
			if err != nil {
				return err
			}
			if p == secrets.Unscoped {
				p = secretstore.PriorityUser
			}

			tag := secretstore.TagNone
			switch {
			case env:
				tag = secretstore.TagEnv
			case hidden:
				tag = secretstore.TagHidden
			}

			ac, err := openContext(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = ac.Close() }()

			if _, ok := ac.Secrets.Store(p); !ok {
				return dserrors.UserError{
					Message:    "No secrets store for scope " + p.String(),
					Suggestion: "Run 'dsconf run' to see the available stores",
				}
			}
			return ac.Secrets.AddSecret(cmd.Context(), name, value, tag, p)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Secret name (required)")
	cmd.Flags().StringVar(&value, "value", "", "Secret value (required)")
	cmd.Flags().BoolVar(&env, "env", false, "Export the secret as an environment variable when the store opens")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Hide the secret from listings")
	cmd.Flags().StringVar(&scope, "scope", "user", "Target store: user, app, aws, azure, gcp")
	_ = cmd.RegisterFlagCompletionFunc("scope", completeScopes())
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}
