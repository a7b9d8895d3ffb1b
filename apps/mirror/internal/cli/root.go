// Package cli is the treemirror command line: one-shot runs, the HTTP API
// and the Temporal worker.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tilsley/treemirror/apps/mirror/internal/config"
	"github.com/tilsley/treemirror/pkg/logging"
)

// app carries what every subcommand needs.
type app struct {
	v       *viper.Viper
	cfgFile string
	stdout  io.Writer

	log      *slog.Logger
	closeLog io.Closer
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree. Summaries are written to stdout, logs
// to stderr.
func NewRootCmd(stdout io.Writer) *cobra.Command {
	a := &app{v: config.New(), stdout: stdout}

	root := &cobra.Command{
		Use:           "treemirror",
		Short:         "Mirror a directory subtree of a GitHub repository",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			log, closer, err := logging.Build(logging.ConfigFromEnv(), os.Stderr)
			if err != nil {
				log.Warn("log file unavailable, logging to stderr only", "error", err)
			}
			a.log, a.closeLog = log, closer
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.closeLog != nil {
				_ = a.closeLog.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "YAML config file")
	pf.String("owner", "", "repository owner")
	pf.String("repo", "", "repository name")
	pf.String("ref", "", "branch, tag or commit to read")
	pf.String("start-path", "", "directory the search starts from")
	pf.String("target", "", "name of the directory to mirror")
	pf.String("api-url", "", "GitHub API base URL")
	pf.Int("retries", 0, "attempts per API request")
	pf.Duration("retry-delay", 0, "base delay between attempts")
	pf.Int("concurrency", 0, "directories expanded in parallel")
	pf.StringSlice("store", nil, "snapshot stores: file, redis, postgres, s3")
	bindFlags(a.v, root, map[string]string{
		"owner":       "owner",
		"repo":        "repo",
		"ref":         "ref",
		"start_path":  "start-path",
		"target":      "target",
		"api_url":     "api-url",
		"retries":     "retries",
		"retry_delay": "retry-delay",
		"concurrency": "concurrency",
		"stores":      "store",
	})

	root.AddCommand(newRunCmd(a), newServeCmd(a), newWorkerCmd(a))
	return root
}

// bindFlags binds persistent flags to viper keys. Unset flags do not override
// lower-precedence sources.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		if f := cmd.PersistentFlags().Lookup(flag); f != nil {
			_ = v.BindPFlag(key, f)
			continue
		}
		_ = v.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

func (a *app) loadConfig() (*config.Config, error) {
	return config.Load(a.v, a.cfgFile)
}
