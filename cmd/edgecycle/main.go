// Package main is the entry point for the edgecycle CLI.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/edgecycle/internal/config"
	"github.com/flemzord/edgecycle/internal/security"
	"github.com/flemzord/edgecycle/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const noWalletsHint = `No wallets found.
Add {"address": "...", "privateKey": "..."} entries to the wallets file
(files.wallets in the config, wallets.json by default) and start again.`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	switch {
	case err == nil:
	case app.IsNoAccounts(err):
		_, _ = fmt.Fprintln(stdout, noWalletsHint)
	default:
		_, _ = fmt.Fprintln(stderr, "Error:", err)
	}
	return exitCode(err)
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "edgecycle",
		Short:         "Keep LayerEdge light nodes alive for a list of wallets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "edgecycle %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	var (
		cfgPath  string
		proxy    string
		noBanner bool
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Process every wallet, then repeat after the cycle interval",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := app.ParseProxyMode(proxy)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.Run(ctx, app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
				Commit:     commit,
				Date:       date,
				Proxy:      mode,
				Prompter:   app.TerminalPrompter{In: os.Stdin, Out: cmd.OutOrStdout()},
				Banner:     !noBanner,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&proxy, "proxy", string(app.ProxyAsk), "Route wallets through proxies: yes, no or ask")
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "Skip the startup banner")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and print the effective settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			cfg, resolved, err := config.LoadDefault(path)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			out, err := effectiveConfig(cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if resolved == "" {
				resolved = "built-in defaults"
			}
			_, _ = fmt.Fprintf(w, "Configuration OK (%s)\n\n%s", resolved, out)
			return nil
		},
	})
	return cmd
}

// effectiveConfig renders cfg as YAML with secrets masked.
func effectiveConfig(cfg *config.Config) ([]byte, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	security.NewRedactor().RedactMap(m)
	return yaml.Marshal(m)
}
