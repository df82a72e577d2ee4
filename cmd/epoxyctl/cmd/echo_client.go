package cmd

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/minghan/bond/pkg/engine"
	"github.com/minghan/bond/pkg/epoxytrace"
)

var echoMessage string

var echoClientCmd = &cobra.Command{
	Use:   "echo-client",
	Short: "Dial a connection engine and round-trip an Echo request",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := net.DialTimeout("tcp", cfg.DialAddr, 5*time.Second)
		if err != nil {
			return fmt.Errorf("dial %s: %w", cfg.DialAddr, err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		c := engine.New(conn, engine.RoleClient,
			engine.WithLogger(log),
			engine.WithTracer(epoxytrace.New()),
		)
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
		defer func() { _ = c.Stop(context.Background()) }()

		resp, err := c.RequestResponse(ctx, "Echo", []byte(echoMessage))
		if err != nil {
			return fmt.Errorf("Echo request: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", resp)
		return nil
	},
}

func init() {
	echoClientCmd.Flags().StringVar(&echoMessage, "message", "hello from epoxyctl", "payload to echo")
	rootCmd.AddCommand(echoClientCmd)
}
