package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/dsconf/internal/app"
	"github.com/systmms/dsconf/internal/config"
	"github.com/systmms/dsconf/internal/execenv"
	"github.com/systmms/dsconf/internal/secrets"
)

func NewRunCommand(cfg *config.Config) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run [key...]",
		Short: "Build the application context and report it",
		Long: `Compute the application paths, load every settings layer and open the
secrets stores, then print what was found. Each key given is resolved and
printed with its value masked.

With --metrics-addr, secret lookup counters are served over HTTP at
/metrics after the report until the process is interrupted.

Examples:
  dsconf run
  dsconf --dev run database.host database.password
  dsconf run --metrics-addr :9090 database.password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := openContext(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = ac.Close() }()

			report(cmd, ac, args)
			if metricsAddr == "" {
				return nil
			}
			return serveMetrics(cmd, ac, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve lookup metrics on this address until interrupted")

	return cmd
}

// serveMetrics exposes the lookup counters of this process until the
// command context is done.
func serveMetrics(cmd *cobra.Command, ac *app.Context, addr string) error {
	srv := secrets.NewMetricsServer(secrets.DefaultMetricsServerConfig(addr), ac.Logger)
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving metrics on %s\n", srv.Addr())

	<-cmd.Context().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

// report prints paths, stores and masked values of keys.
func report(cmd *cobra.Command, ac *app.Context, keys []string) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Application: %s\n", ac.Name)
	fmt.Fprintf(out, "Log folder:  %s\n", ac.LogFolderID())
	fmt.Fprintln(out, "Paths:")
	fmt.Fprintf(out, "  logs=%s\n", ac.Paths.LogRoot)
	fmt.Fprintf(out, "  app=%s\n", ac.Paths.AppData)
	fmt.Fprintf(out, "  user=%s\n", ac.Paths.UserData)
	fmt.Fprintf(out, "  temp=%s\n", ac.Paths.Temp)

	fmt.Fprintln(out, "Secrets stores:")
	for _, s := range ac.Secrets.Stores() {
		fmt.Fprintf(out, "  %s (%s)\n", s.Name(), s.Priority())
	}

	if len(keys) == 0 {
		return
	}
	fmt.Fprintln(out, "Values:")
	printResolved(out, cmd, ac, keys)
}

func printResolved(out io.Writer, cmd *cobra.Command, ac *app.Context, keys []string) {
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		if v := ac.Settings.Get(cmd.Context(), key, nil); v != nil {
			values[key] = fmt.Sprint(v)
		}
	}
	execenv.PrintValues(out, values)
}
