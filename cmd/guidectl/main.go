// Command guidectl is the operator tool for the guide shop: render a guide
// locally, clear the content cache, resume stuck purchases and list them.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/config"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/sysutil"
)

var version = "dev"

type globals struct {
	dbPath   string
	logLevel string
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "guidectl",
		Short:         "Operate the Deep Travel Collection guide shop",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			sysutil.SetLogLevel(g.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&g.dbPath, "db", "", "SQLite path (default: DB_PATH)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "debug|info|warn|error")

	root.AddCommand(renderCmd(g))
	root.AddCommand(cacheCmd(g))
	root.AddCommand(resumeCmd(g))
	root.AddCommand(purchasesCmd(g))
	return root
}

// load reads the environment configuration and applies flag overrides.
func (g *globals) load() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	cfg.DBPath = sysutil.FirstNonEmpty(g.dbPath, cfg.DBPath)
	return cfg, nil
}

func (g *globals) logger(cmd *cobra.Command) zerolog.Logger {
	return sysutil.NewLogger(cmd.ErrOrStderr(), true)
}
