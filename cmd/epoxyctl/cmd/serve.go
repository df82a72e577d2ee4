package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/minghan/bond/pkg/engine"
	"github.com/minghan/bond/pkg/epoxytrace"
	"github.com/minghan/bond/pkg/host"
	"github.com/minghan/bond/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host a connection engine on a TCP listener",
	Long: `serve listens on the configured address and, for each accepted
connection, runs a server-role engine with an echo Host: Echo requests
return their payload verbatim, and events are logged and dropped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ln, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
		}
		defer ln.Close()
		log.Info().Str("addr", cfg.ListenAddr).Msg("epoxyctl serve listening")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sig
			log.Info().Msg("shutting down")
			cancel()
			ln.Close()
		}()

		serverHost := host.NewRouter().
			HandleRequest("Echo", func(ctx context.Context, payload []byte) ([]byte, error) {
				return payload, nil
			}).
			HandleEvent("Ping", func(ctx context.Context, payload []byte) error {
				log.Info().Str("payload", string(payload)).Msg("received Ping event")
				return nil
			})

		sink := metrics.NewPrometheusSink(nil)

		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				default:
					return fmt.Errorf("accept: %w", err)
				}
			}
			go serveConn(ctx, conn, serverHost, sink)
		}
	},
}

func serveConn(ctx context.Context, conn net.Conn, h host.Host, sink metrics.Sink) {
	c := engine.New(conn, engine.RoleServer,
		engine.WithHost(h),
		engine.WithLogger(log),
		engine.WithTracer(epoxytrace.New()),
		engine.WithMetricsSink(sink),
	)
	if err := c.Start(ctx); err != nil {
		log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("connection handshake failed")
		return
	}
	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("connection established")
	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
