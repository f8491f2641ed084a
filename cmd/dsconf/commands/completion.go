package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/systmms/dsconf/internal/config"
	"github.com/systmms/dsconf/pkg/secretstore"
)

// NewCompletionCommand writes a shell completion script to stdout.
func NewCompletionCommand(_ *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for dsconf. Scope flags complete to the
configured store names.

Examples:
  source <(dsconf completion bash)
  dsconf completion zsh > "${fpath[1]}/_dsconf"
  dsconf completion fish > ~/.config/fish/completions/dsconf.fish
  dsconf completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

// completeScopes offers every store scope, or only those in allowed.
func completeScopes(allowed ...secretstore.Priority) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	if len(allowed) == 0 {
		allowed = secretstore.Priorities
	}
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var out []string
		for _, p := range allowed {
			name := strings.ToLower(p.String())
			if strings.HasPrefix(name, strings.ToLower(toComplete)) {
				out = append(out, name)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}
