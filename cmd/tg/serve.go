package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/amonks/taskgraph/api"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr or 127.0.0.1:8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withSession(func(s *session) error {
		addr := serveAddr
		if addr == "" {
			addr = s.cfg.Addr()
		}
		server, err := api.NewServer(api.Options{App: s.App, Logger: s.Logger})
		if err != nil {
			return err
		}
		s.Logger.Printf("serving %s", s.DataDir())
		return server.Serve(ctx, addr)
	})
}
