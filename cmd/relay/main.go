package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ucibridge/infrastructure/logging"
	"ucibridge/infrastructure/relay/rendezvous"
)

func main() {
	var (
		port        int
		maxSessions int
		staleAfter  time.Duration
		logDir      string
		serverLog   bool
	)

	root := &cobra.Command{
		Use:           "ucibridge-relay",
		Short:         "Rendezvous server pairing bridge hosts with remote clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, logErr := logging.Setup(logDir, serverLog)
			if logErr != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", logErr)
			}

			listener, listenErr := net.Listen("tcp", fmt.Sprintf(":%d", port))
			if listenErr != nil {
				return fmt.Errorf("failed to listen on port %d: %w", port, listenErr)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return rendezvous.NewServer(maxSessions, staleAfter, logger).Run(ctx, listener)
		},
	}

	root.Flags().IntVar(&port, "port", 19000, "TCP port to listen on")
	root.Flags().IntVar(&maxSessions, "max-sessions", rendezvous.DefaultMaxSessions, "maximum concurrent sessions")
	root.Flags().DurationVar(&staleAfter, "stale-after", rendezvous.DefaultStaleAfter, "unpaired session expiry")
	root.Flags().StringVar(&logDir, "log-dir", "", "directory for the server log file")
	root.Flags().BoolVar(&serverLog, "log-file", false, "duplicate log output into a file")

	if runErr := root.Execute(); runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}
