package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/systmms/dsconf/internal/config"
	dserrors "github.com/systmms/dsconf/internal/errors"
	"github.com/systmms/dsconf/pkg/secretstore"
	"gopkg.in/yaml.v3"
)

func NewSetCommand(cfg *config.Config) *cobra.Command {
	var (
		scope     string
		valueType string
	)

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist a setting override",
		Long: `Save a setting in the USER or APP override store. Overrides win over
every configuration file layer; APP overrides win over USER overrides.

Examples:
  dsconf set database.host db.internal
  dsconf set workers 4 --type int --scope app
  dsconf set database.password SEC/db_password`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := settingsScope(scope)
			if err != nil {
				return err
			}
			value, err := parseValue(args[1], valueType)
			if err != nil {
				return err
			}

			ac, err := openContext(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = ac.Close() }()

			return ac.Settings.Set(args[0], value, p)
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "user", "Override store: user or app")
	_ = cmd.RegisterFlagCompletionFunc("scope", completeScopes(secretstore.PriorityUser, secretstore.PriorityApplication))
	cmd.Flags().StringVar(&valueType, "type", "string", "Value type: string, int, float, bool, mapping")

	return cmd
}

func NewUnsetCommand(cfg *config.Config) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a setting override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := settingsScope(scope)
			if err != nil {
				return err
			}

			ac, err := openContext(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = ac.Close() }()

			return ac.Settings.Unset(args[0], p)
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "user", "Override store: user or app")
	_ = cmd.RegisterFlagCompletionFunc("scope", completeScopes(secretstore.PriorityUser, secretstore.PriorityApplication))

	return cmd
}

// settingsScope accepts only the scopes that own an override store.
func settingsScope(s string) (secretstore.Priority, error) {
	p, err := parseScope(s)
	if err != nil {
		return 0, err
	}
	if p != secretstore.PriorityUser && p != secretstore.PriorityApplication {
		return 0, dserrors.UserError{
			Message:    fmt.Sprintf("Settings cannot be stored in scope %q", s),
			Suggestion: "Use --scope user or --scope app",
		}
	}
	return p, nil
}

func parseValue(raw, valueType string) (interface{}, error) {
	invalid := func(err error) error {
		return dserrors.UserError{
			Message:    fmt.Sprintf("Value %q is not a valid %s", raw, valueType),
			Suggestion: "Check --type",
			Err:        err,
		}
	}

	switch valueType {
	case "", "string":
		return raw, nil
	case "int":
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, invalid(err)
		}
		return v, nil
	case "float":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, invalid(err)
		}
		return v, nil
	case "bool":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, invalid(err)
		}
		return v, nil
	case "mapping":
		var v map[string]interface{}
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, invalid(err)
		}
		if v == nil {
			return nil, invalid(fmt.Errorf("not a mapping"))
		}
		return v, nil
	default:
		return nil, dserrors.UserError{
			Message:    fmt.Sprintf("Unknown value type %q", valueType),
			Suggestion: "Use one of: string, int, float, bool, mapping",
		}
	}
}
