package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/dsconf/internal/app"
	"github.com/systmms/dsconf/internal/config"
	dserrors "github.com/systmms/dsconf/internal/errors"
	"github.com/systmms/dsconf/internal/execenv"
)

// openHandoff returns the descriptor the parent wrote the handoff to.
var openHandoff = func() (io.ReadCloser, error) {
	f := os.NewFile(uintptr(execenv.HandoffFD), "handoff")
	if f == nil {
		return nil, os.ErrNotExist
	}
	return f, nil
}

func NewWorkerCommand(cfg *config.Config) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:    "worker [key...]",
		Short:  "Run as a worker started by 'dsconf spawn'",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openHandoff()
			if err != nil {
				return handoffError(err)
			}
			h, err := app.DecodeHandoff(r)
			_ = r.Close()
			if err != nil {
				return handoffError(err)
			}

			env := app.LoadEnvironment(nil)
			ac, err := app.New(cmd.Context(), app.Options{
				Password:    cfg.Password,
				Env:         env,
				WorkingDir:  cfg.WorkingDir,
				Handoff:     &h,
				Logger:      logger(cfg).With("worker", h.LogFolderID),
				SecretsOpts: secretsOptions,
			})
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

func handoffError(err error) error {
	return dserrors.UserError{
		Message:    "No application context was handed off",
		Suggestion: "Start workers with 'dsconf spawn -- dsconf worker'",
		Err:        err,
	}
}
