package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/dsconf/internal/config"
	dserrors "github.com/systmms/dsconf/internal/errors"
	"gopkg.in/yaml.v3"
)

func NewGetCommand(cfg *config.Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Resolve a single setting",
		Long: `Resolve one setting through the override stores and configuration
layers, following ENV/, SEC/ and <PROVIDER>_Secret# markers.

Keys use dots to reach into nested mappings. Scalars are printed raw,
mappings as YAML (or JSON with --json).

Examples:
  dsconf get database.host
  dsconf get secrets_manager --json
  export DB_PASSWORD=$(dsconf get database.password)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			ac, err := openContext(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = ac.Close() }()

			value := ac.Settings.Get(cmd.Context(), key, nil)
			if value == nil {
				return dserrors.UserError{
					Message:    fmt.Sprintf("Setting %q is not defined", key),
					Suggestion: "Check config/config.yaml or set it with 'dsconf set'",
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}

			switch v := value.(type) {
			case map[string]interface{}, []interface{}:
				data, err := yaml.Marshal(v)
				if err != nil {
					return fmt.Errorf("failed to format %s: %w", key, err)
				}
				fmt.Fprint(out, string(data))
			default:
				fmt.Fprintln(out, v)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
