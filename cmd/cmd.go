// Package cmd implements the gitplane command line interface.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"

	"github.com/gitplane/gitplane/internal/logging"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

var (
	logLevel  = enumflag.Flag(logging.LogLevelInfo)
	logFormat = enumflag.Flag(formatJSON)

	logLevelIds = map[enumflag.Flag][]string{
		logging.LogLevelDebug: {"debug"},
		logging.LogLevelInfo:  {"info"},
		logging.LogLevelWarn:  {"warn"},
		logging.LogLevelError: {"error"},
	}

	logFormatIds = map[enumflag.Flag][]string{
		formatJSON:   {"json"},
		formatPretty: {"pretty"},
	}
)

const (
	formatJSON enumflag.Flag = iota
	formatPretty
)

var rootCmd = &cobra.Command{
	Use:           "gitplane",
	Short:         "Mirror git branches and tags between remotes",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Accept underscores in flag names for consistency with config keys.
	rootCmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.PersistentFlags().Var(
		enumflag.New(&logLevel, "log-level", logLevelIds, enumflag.EnumCaseInsensitive),
		"log-level", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Var(
		enumflag.New(&logFormat, "log-format", logFormatIds, enumflag.EnumCaseInsensitive),
		"log-format", "log format (json, pretty)")
}

func newLogger() *logging.Logger {
	format := logging.FormatJSON
	if logFormat == formatPretty {
		format = logging.FormatPretty
	}
	return logging.NewLogger(logging.Config{Level: int(logLevel), Format: format})
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
