package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/dsconf/internal/config"
	dserrors "github.com/systmms/dsconf/internal/errors"
	"github.com/systmms/dsconf/internal/secrets"
)

// NewSecretCommand groups the direct secrets store operations.
func NewSecretCommand(cfg *config.Config) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Read and write secrets",
		Long: `Read and write secrets in the configured stores.

Without --scope, reads walk the stores by priority (USER, APP, AWS, AZURE,
GCP) and writes go to the USER store.

Examples:
  dsconf secret get db_password
  dsconf secret set db_password hunter2 --scope app
  dsconf secret generate api_key --length 32
  dsconf secret list --all`,
	}

	cmd.PersistentFlags().StringVar(&scope, "scope", "", "Store scope: user, app, aws, azure, gcp")
	_ = cmd.RegisterFlagCompletionFunc("scope", completeScopes())

	cmd.AddCommand(
		newSecretGetCommand(cfg, &scope),
		newSecretSetCommand(cfg, &scope),
		newSecretDeleteCommand(cfg, &scope),
		newSecretListCommand(cfg, &scope),
		newSecretGenerateCommand(cfg, &scope),
	)

	return cmd
}

func newSecretGetCommand(cfg *config.Config, scope *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseScope(*scope)
			if err != nil {
				return err
			}

			ac, err := openContext(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = ac.Close() }()

			value := ac.Secrets.Get(cmd.Context(), args[0], "", p)
			if value == "" {
				return dserrors.UserError{
					Message:    fmt.Sprintf("Secret %q was not found", args[0]),
					Suggestion: "List the available secrets with 'dsconf secret list'",
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newSecretSetCommand(cfg *config.Config, scope *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Store a secret",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseScope(*scope)
			if err != nil {
				return err
			}

			ac, err := openContext(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = ac.Close() }()

			return ac.Secrets.Set(cmd.Context(), args[0], args[1], p)
		},
	}
}

func newSecretDeleteCommand(cfg *config.Config, scope *string) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a secret",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseScope(*scope)
			if err != nil {
				return err
			}

			ac, err := openContext(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = ac.Close() }()

			return ac.Secrets.Delete(cmd.Context(), args[0], p)
		},
	}
}

func newSecretListCommand(cfg *config.Config, scope *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List secret names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseScope(*scope)
			if err != nil {
				return err
			}

			ac, err := openContext(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = ac.Close() }()

			names, err := ac.Secrets.Names(cmd.Context(), p, all)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include hidden secrets")

	return cmd
}

func newSecretGenerateCommand(cfg *config.Config, scope *string) *cobra.Command {
	var (
		length int
		show   bool
	)

	cmd := &cobra.Command{
		Use:   "generate <name>",
		Short: "Store a random secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseScope(*scope)
			if err != nil {
				return err
			}

			ac, err := openContext(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = ac.Close() }()

			value, err := ac.Secrets.Generate(cmd.Context(), args[0], length, p)
			if errors.Is(err, secrets.ErrSecretLength) {
				return dserrors.UserError{
					Message:    "Failed to generate secret",
					Suggestion: "Use a --length between 1 and 94",
					Err:        err,
				}
			}
			if err != nil {
				return err
			}
			if show {
				fmt.Fprintln(cmd.OutOrStdout(), value)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&length, "length", secrets.DefaultSecretLength, "Number of characters")
	cmd.Flags().BoolVar(&show, "show", false, "Print the generated value")

	return cmd
}
