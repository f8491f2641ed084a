package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/systmms/dsconf/cmd/dsconf/commands"
	"github.com/systmms/dsconf/internal/config"
	dserrors "github.com/systmms/dsconf/internal/errors"
	"github.com/systmms/dsconf/internal/logging"
	"github.com/systmms/dsconf/internal/secure"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := run()
	secure.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var cmdErr dserrors.CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode != 0 {
		return cmdErr.ExitCode
	}
	return 1
}

func run() error {
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "dsconf",
		Short: "Layered settings and secrets for applications",
		Long: `dsconf resolves application settings from override stores and YAML
layers, and reads secrets from encrypted local stores and cloud secret
managers (AWS Secrets Manager, Azure Key Vault, GCP Secret Manager).`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Logger = logging.New(cfg.Debug, cfg.NoColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfg.AppName, "app-name", "dsconf", "Application name used for data directories")
	rootCmd.PersistentFlags().BoolVar(&cfg.DevMode, "dev", false, "Keep all data under the working directory")
	rootCmd.PersistentFlags().StringVar(&cfg.Password, "password", "", "Password for the local secrets stores")
	rootCmd.PersistentFlags().BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewInitCommand(cfg),
		commands.NewAddSecretCommand(cfg),
		commands.NewGetCommand(cfg),
		commands.NewSetCommand(cfg),
		commands.NewUnsetCommand(cfg),
		commands.NewSecretCommand(cfg),
		commands.NewRunCommand(cfg),
		commands.NewSpawnCommand(cfg),
		commands.NewWorkerCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}
