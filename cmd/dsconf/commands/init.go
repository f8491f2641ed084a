package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/dsconf/internal/config"
	dserrors "github.com/systmms/dsconf/internal/errors"
	"github.com/systmms/dsconf/internal/keyring"
)

func NewInitCommand(cfg *config.Config) *cobra.Command {
	var (
		newPassword string
		useKeyring  bool
		forget      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the local secrets stores",
		Long: `Create the USER and APP secrets stores if they do not exist yet.

New stores are encrypted with --password, SECRETS_STORE_PASSWORD, or a
password derived from this machine, in that order.

Examples:
  # Create stores bound to this machine
  dsconf init

  # Create stores with an explicit password and remember it in the OS keyring
  dsconf init --password s3cret --keyring

  # Change the password of existing stores
  dsconf init --password old --new-password new

  # Remove the saved passwords from the OS keyring
  dsconf init --password s3cret --forget-keyring`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if useKeyring && forget {
				return dserrors.UserError{
					Message:    "--keyring and --forget-keyring cannot be combined",
					Suggestion: "Pick one",
				}
			}
			if useKeyring && cfg.Password == "" && newPassword == "" {
				return dserrors.UserError{
					Message:    "--keyring needs an explicit password",
					Suggestion: "Pass --password or --new-password",
				}
			}

			ac, err := openContext(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = ac.Close() }()

			password := cfg.Password
			for _, store := range localStores(ac.Secrets) {
				if newPassword != "" {
					if err := store.Rekey(cmd.Context(), newPassword); err != nil {
						return err
					}
					password = newPassword
				}
				if useKeyring {
					if err := keyring.SavePassword(store.Path(), password); err != nil {
						return dserrors.UserError{
							Message:    "Failed to save the password in the OS keyring",
							Suggestion: "Enable use_keyring only where a keyring service is available",
							Err:        err,
						}
					}
				}
				if forget {
					if err := keyring.DeletePassword(store.Path()); err != nil {
						return dserrors.UserError{
							Message: "Failed to remove the password from the OS keyring",
							Err:     err,
						}
					}
				}

				line := fmt.Sprintf("%s: %s", store.Name(), store.Path())
				if keyring.HasPassword(store.Path()) {
					line += " (password in keyring)"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&newPassword, "new-password", "", "Re-encrypt existing stores with this password")
	cmd.Flags().BoolVar(&useKeyring, "keyring", false, "Save the password in the OS keyring")
	cmd.Flags().BoolVar(&forget, "forget-keyring", false, "Remove saved passwords from the OS keyring")

	return cmd
}
