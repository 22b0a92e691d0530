package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	sse "github.com/tmaxmax/go-sse-resume"
	"github.com/tmaxmax/go-sse-resume/internal/ssetest"
)

const streamLongDesc = `Consume an event stream and write its events to stdout,
in the event stream format.

The stream is consumed until sseloop is interrupted. Connection failures
are logged and followed by a reconnection that resumes from the last event
received, unless --max-attempts is reached or --stop-on-client-error is set
and the server rejects the request. Failing to write an event to stdout
always stops the stream.`

func newStreamCmd(root *rootCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Consume an event stream",
		Long:  streamLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.finish(runStream(cmd, root))
		},
	}

	cmd.Flags().StringP("url", "u", "", "URL of the event stream")
	cmd.Flags().String("last-event-id", "", "ID of the last event already received")
	cmd.Flags().Int("max-attempts", 0, "Maximum number of connection attempts, 0 for no limit")
	cmd.Flags().Bool("stop-on-client-error", false, "Stop if the server rejects the request with a 4xx status")
	cmd.Flags().Int("max-event-size", 0, "Maximum length of a line of the stream, in bytes")
	cmd.Flags().Duration("backoff", 0, "Delay before the first reconnection")
	cmd.Flags().Duration("backoff-max", 0, "Maximum delay between reconnections")

	return cmd
}

func runStream(cmd *cobra.Command, root *rootCommander) error {
	client, err := root.cfg.Client(&root.logger)
	if err != nil {
		return err
	}

	client.OnReconnect = func(attempt int, lastEventID sse.EventID, delay time.Duration) {
		if attempt%10 == 0 {
			root.logger.Warn().
				Int("attempt", attempt).
				Str("last_event_id", lastEventID.String()).
				Dur("delay", delay).
				Msg("stream keeps reconnecting")
		}
	}

	// Reconnecting can't fix a broken output, so write failures always stop.
	onError := client.OnError
	client.OnError = func(err error) error {
		if errors.As(err, new(*writeError)) {
			return err
		}
		return onError(err)
	}

	out := cmd.OutOrStdout()

	return client.Start(cmd.Context(), func(ev sse.Event) error {
		if _, err := ssetest.WriteEvent(out, ev); err != nil {
			return &writeError{err: err}
		}
		return nil
	})
}

type writeError struct {
	err error
}

func (e *writeError) Error() string {
	return fmt.Sprintf("writing event: %v", e.err)
}

func (e *writeError) Unwrap() error {
	return e.err
}
