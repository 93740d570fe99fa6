package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/forgeloop/internal/logger"
	"github.com/mark3labs/forgeloop/internal/mcpserver"
	"github.com/mark3labs/forgeloop/internal/service"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	stdio bool
	addr  string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the build loop as MCP tools",
	Long: `Serve the build loop to MCP clients.

Tools: start_build, get_build_status, stop_build, get_build_history,
export_to_github, request_credentials.
Resources: forgeloop://status, forgeloop://config.

By default the server speaks streamable HTTP on --addr at /mcp; use --stdio
to serve a single client over stdin/stdout.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveFlags.stdio, "stdio", false, "Serve over stdin/stdout")
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "127.0.0.1:8765", "HTTP listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeEvents, err := openEvents(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEvents()

	opts := service.Options{WorkDir: "."}
	if store != nil {
		opts.Events = store
	}
	svc := service.New(ctx, cfg, opts)
	defer svc.Close()

	srv := mcpserver.New(svc, store)

	if serveFlags.stdio {
		if err := srv.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
			return fmt.Errorf("stdio server failed: %w", err)
		}
		return nil
	}

	if _, err := srv.Start(ctx, serveFlags.addr); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on %s\n", srv.URL())

	<-ctx.Done()
	logger.Info("Shutting down MCP server")
	return srv.Stop()
}
