package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

const serveLongDesc = `Serve a numbered demo event stream.

Event n has the ID n and the data "SSE-n". Requests resume after the event
named by their Last-Event-ID header, and are rejected with 400 Bad Request
if the header isn't a number. Use --batch and --fail-after to end
connections cleanly or abruptly, so that clients have to reconnect.`

func newServeCmd(root *rootCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a demo event stream",
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := net.Listen("tcp", root.cfg.Serve.Listen)
			if err != nil {
				return root.finish(fmt.Errorf("listening on %s: %w", root.cfg.Serve.Listen, err))
			}
			return root.finish(runServe(cmd.Context(), root, l))
		},
	}

	cmd.Flags().StringP("listen", "l", ":8080", "Address to listen on")
	cmd.Flags().String("path", "/events", "Path the stream is served on")
	cmd.Flags().Int("events", 0, "Number of events in the stream, 0 for unbounded")
	cmd.Flags().Int("batch", 10, "Events sent per connection, 0 for no limit")
	cmd.Flags().Int("fail-after", 0, "Abort every connection after this many events")
	cmd.Flags().Duration("interval", time.Second, "Delay before each event")
	cmd.Flags().Duration("retry", 0, "Reconnection time sent to clients")

	return cmd
}

func runServe(ctx context.Context, root *rootCommander, l net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("GET "+root.cfg.Serve.Path, root.cfg.Server())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		root.logger.Info().
			Str("addr", l.Addr().String()).
			Str("path", root.cfg.Serve.Path).
			Msg("serving event stream")
		errc <- srv.Serve(l)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
