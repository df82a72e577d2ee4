package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/minghan/bond/pkg/epoxyconfig"
	"github.com/minghan/bond/pkg/epoxylog"
	"github.com/minghan/bond/pkg/epoxytrace"
)

var (
	cfgFile string
	listen  string
	dial    string

	cfg       *epoxyconfig.Config
	log       zerolog.Logger
	traceShut func() error
)

var rootCmd = &cobra.Command{
	Use:   "epoxyctl",
	Short: "epoxyctl — drive and inspect Epoxy connections",
	Long: `epoxyctl is the operator-facing CLI for the Epoxy connection core.
It can host a connection engine on a TCP listener (serve) or dial one and
round-trip a request through it (echo-client), for manual protocol
testing and demonstration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = epoxyconfig.DefaultPath()
		}
		var err error
		cfg, err = epoxyconfig.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if listen != "" {
			cfg.ListenAddr = listen
		}
		if dial != "" {
			cfg.DialAddr = dial
		}

		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			level = zerolog.InfoLevel
		}
		log = epoxylog.New(epoxylog.Options{
			App:         "epoxyctl",
			Development: cfg.Development,
			Level:       level,
		})

		shutdown, err := epoxytrace.Setup(epoxytrace.Config{
			Enabled:  cfg.Tracing.Enabled,
			Exporter: cfg.Tracing.Exporter,
		})
		if err != nil {
			return fmt.Errorf("setup tracing: %w", err)
		}
		traceShut = func() error { return shutdown(cmd.Context()) }
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if traceShut != nil {
			return traceShut()
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.epoxy/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&listen, "listen", "", "address to listen on (serve)")
	rootCmd.PersistentFlags().StringVar(&dial, "dial", "", "address to dial (echo-client)")
}
