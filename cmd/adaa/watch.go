package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/adaa/pkg/events"
	"github.com/codeready-toolchain/adaa/pkg/stream"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <task_id>",
		Short: "Follow the live activity of an analysis",
		Long: "Connects to the analysis event stream and prints every message as JSON. " +
			"Exits when the analysis reaches a terminal status.",
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}
	cmd.Flags().String("server", getEnv("ADAA_SERVER", "http://localhost:8000"), "API base URL")
	cmd.Flags().String("token", getEnv("ADAA_TOKEN", ""), "Bearer token")
	cmd.Flags().Duration("backoff", stream.DefaultBackoff, "Delay between reconnect attempts")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	backoff, _ := cmd.Flags().GetDuration("backoff")

	streamURL, err := url.JoinPath(strings.TrimRight(server, "/"), "api", "v1", "analyses", args[0], "events")
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	consumer := stream.NewConsumer(stream.Config{
		URL:     streamURL,
		Token:   token,
		Backoff: backoff,
		OnStateChange: func(from, to stream.State) {
			slog.Info("Stream state changed", "from", from, "to", to)
		},
	})

	err = consumer.Run(ctx, func(_ context.Context, msg stream.Message) error {
		fmt.Fprintln(out, string(msg.Data))
		if msg.Type != events.MessageTypeStatus {
			return nil
		}
		var status events.StatusMessage
		if err := json.Unmarshal(msg.Data, &status); err != nil {
			return fmt.Errorf("malformed status message: %w", err)
		}
		if status.Status.IsTerminal() {
			return stream.ErrStop
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
