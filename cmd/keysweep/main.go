// Keysweep is the command-line front end for the sweep engine.
//
// Usage:
//
//	keysweep --charset abc123 --min-length 1 --max-length 6 \
//	    --archive secret.7z --mode ascending \
//	    [--pattern 'pre?fix*'] [--skip-file state.bloom] \
//	    [--checkpoint-interval 60] [--verifier /usr/bin/7z] [--config cfg.yaml]
//
// The status stream goes to stdout; diagnostics go to stderr. Exit codes:
// 0 password found, 1 not found or stopped, 2 configuration error,
// 3 archive tester not found.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mtarnawa/keysweep"
	kserrors "github.com/mtarnawa/keysweep/errors"
	"github.com/mtarnawa/keysweep/verifier"
)

const (
	exitFound       = 0
	exitNotFound    = 1
	exitConfigError = 2
	exitNoVerifier  = 3
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "keysweep",
	Short:         "Parallel resumable password sweep for encrypted archives",
	Long:          "Keysweep enumerates candidate passwords over a declared alphabet and length range,\noptionally constrained by a wildcard template, and verifies each against an archive\nusing an external tester binary. A persistent Bloom skip filter makes runs resumable.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagConfig, "config", "", "config file path")
	flags.String("charset", "", "ordered candidate alphabet (required)")
	flags.Int("min-length", 1, "minimum candidate length")
	flags.Int("max-length", 1, "maximum candidate length")
	flags.String("archive", "", "archive file to test against (required)")
	flags.String("mode", "ascending", "sweep order: ascending, descending, random")
	flags.String("pattern", "", "wildcard template ('?' one char, '*' any run, '\\' escapes)")
	flags.String("skip-file", "", "skip filter state file (enables the filter)")
	flags.Int("checkpoint-interval", 0, "seconds between periodic filter saves (0 disables)")
	flags.Int("threads", 0, "worker thread count (0 = host parallelism)")
	flags.String("verifier", "", "archive tester binary (default: discover 7z)")
}

// loadConfig layers flag > environment > config file > default, in the
// usual viper precedence, and materializes the engine configuration.
func loadConfig(cmd *cobra.Command) (keysweep.Config, string, error) {
	v := viper.New()
	v.SetEnvPrefix("KEYSWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return keysweep.Config{}, "", err
	}
	if flagConfig != "" {
		v.SetConfigFile(flagConfig)
		if err := v.ReadInConfig(); err != nil {
			return keysweep.Config{}, "", err
		}
	}

	mode, err := keysweep.ParseMode(v.GetString("mode"))
	if err != nil {
		return keysweep.Config{}, "", err
	}
	cfg := keysweep.Config{
		Charset:            v.GetString("charset"),
		MinLength:          v.GetInt("min-length"),
		MaxLength:          v.GetInt("max-length"),
		Archive:            v.GetString("archive"),
		Mode:               mode,
		Pattern:            v.GetString("pattern"),
		FilterPath:         v.GetString("skip-file"),
		CheckpointInterval: time.Duration(v.GetInt("checkpoint-interval")) * time.Second,
		Threads:            v.GetInt("threads"),
	}
	return cfg, v.GetString("verifier"), nil
}

// exitCode carries the process exit status out of run; cobra's error path
// cannot express non-error exits like "not found". The default covers flag
// and config failures surfaced before the engine starts.
var exitCode = exitConfigError

func run(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, verifierPath, err := loadConfig(cmd)
	if err != nil {
		exitCode = exitConfigError
		return err
	}

	if verifierPath == "" {
		verifierPath, err = verifier.FindNearExecutable()
		if err != nil {
			exitCode = exitNoVerifier
			return err
		}
	}
	logger.Info("using archive tester", "path", verifierPath)

	sink := keysweep.NewWriterSink(os.Stdout)
	eng, err := keysweep.New(cfg, verifier.New(verifierPath).Verify, sink)
	if err != nil {
		exitCode = exitConfigError
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := eng.Run(ctx)
	if err != nil {
		if errors.Is(err, kserrors.ErrSpaceTooLarge) || errors.Is(err, kserrors.ErrCountOverflow) {
			exitCode = exitConfigError
		}
		return err
	}
	logger.Info("sweep complete", "outcome", res.Outcome.String(), "elapsed", res.Elapsed)
	if res.Outcome == keysweep.OutcomeFound {
		exitCode = exitFound
	} else {
		exitCode = exitNotFound
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("keysweep failed", "err", err)
	}
	os.Exit(exitCode)
}
