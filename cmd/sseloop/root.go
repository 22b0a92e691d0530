package main

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tmaxmax/go-sse-resume/internal/config"
	"github.com/tmaxmax/go-sse-resume/internal/logging"
)

const rootLongDesc = `sseloop consumes server-sent event streams without gaps.

Every time a connection ends, successfully or not, sseloop reconnects sending
the ID of the last event it received, so the server can resume the stream:
  sseloop stream --url http://localhost:8080/events
  sseloop serve  --batch 10     Serve a numbered demo stream

Settings are read from flags, SSE_* environment variables and an optional
sseloop.yaml file, in this order of precedence.`

type rootCommander struct {
	configFile string
	cfg        *config.Config
	logger     zerolog.Logger
}

func newRootCmd() *cobra.Command {
	cmder := &rootCommander{}

	cmd := &cobra.Command{
		Use:           "sseloop",
		Short:         "Resilient server-sent events client",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&cmder.configFile, "config", "c", "", "Path to a config file")
	cmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error, disabled)")
	cmd.PersistentFlags().String("log-format", "console", "Log format (console, json)")

	cmd.AddCommand(newStreamCmd(cmder))
	cmd.AddCommand(newServeCmd(cmder))

	return cmd
}

func (r *rootCommander) load(cmd *cobra.Command) error {
	v, err := config.InitViper(r.configFile)
	if err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd); err != nil {
		return err
	}

	r.cfg, err = config.Load(v)
	if err != nil {
		return err
	}

	out := cmd.ErrOrStderr()
	if strings.ToLower(r.cfg.Log.Output) == "stdout" {
		out = cmd.OutOrStdout()
	}
	r.logger, err = logging.NewWithWriter(r.cfg.Log, out)

	return err
}

// finish reports the error that ended a command, treating the
// cancellation of the command's context as a clean exit.
func (r *rootCommander) finish(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	r.logger.Error().Err(err).Msg("stopped")
	return err
}
