package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/dsconf/internal/config"
	"github.com/systmms/dsconf/internal/execenv"
)

func NewSpawnCommand(cfg *config.Config) *cobra.Command {
	var timeout int

	cmd := &cobra.Command{
		Use:   "spawn -- <command> [args...]",
		Short: "Run a worker process that shares this context",
		Long: `Start a child process and pass it the application context on file
descriptor 3. A dsconf worker reads the record and reopens the same paths,
settings and secrets stores without recomputing them or cleaning the
temporary directory. DSCONF_LOG_FOLDER_ID is set for the child so that
other programs can log next to the parent.

Examples:
  dsconf spawn -- dsconf worker database.host
  dsconf spawn -- dsconf worker --metrics-addr :9090 database.password`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := execenv.ValidateCommand(args); err != nil {
				return err
			}

			ac, err := openContext(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = ac.Close() }()

			return ac.Spawn(cmd.Context(), execenv.SpawnOptions{
				Command: args,
				Timeout: timeout,
				Stdout:  cmd.OutOrStdout(),
				Stderr:  cmd.ErrOrStderr(),
				Redact:  []string{cfg.Password, ac.Env.SecretsStorePassword},
			})
		},
	}

	cmd.Flags().IntVar(&timeout, "timeout", 0, "Stop the child after this many seconds (0 for no limit)")

	return cmd
}
