// litmus-toml-translator converts symbolic litmus tests written in TOML into
// C sources for system-litmus-harness.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/colorfulnotion/litmus/driver"
	"github.com/colorfulnotion/litmus/isa"
	log "github.com/colorfulnotion/litmus/log"
	"github.com/colorfulnotion/litmus/translate"
	"github.com/colorfulnotion/litmus/types"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

var (
	isaConfig     string
	keepHistogram bool
	verbosity     int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		output     string
		force      bool
		flatten    bool
		ignoreList string
		jobs       int
		jsonLog    string
	)

	var rootCmd = &cobra.Command{
		Use:          "litmus-toml-translator [inputs...]",
		Short:        "Translate TOML litmus tests into system-litmus-harness C files",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogging(verbosity)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := newTranslator()
			if err != nil {
				return err
			}
			opts := driver.Options{
				Output:     output,
				Force:      force,
				Flatten:    flatten,
				IgnoreList: ignoreList,
				Mode:       mode(),
				Jobs:       jobs,
				Color:      colorOutput(cmd.ErrOrStderr()),
				Status:     cmd.ErrOrStderr(),
			}
			if jsonLog != "" {
				f, err := os.Create(jsonLog)
				if err != nil {
					return err
				}
				defer f.Close()
				opts.Records = log.NewRecordWriter(f)
			}
			d, err := driver.New(tr, opts)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				if term.IsTerminal(int(os.Stdin.Fd())) {
					return cmd.Help()
				}
				return d.TranslateStream(cmd.InOrStdin(), cmd.OutOrStdout())
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err = d.Run(ctx, args, cmd.OutOrStdout())
			if len(args) > 1 || output != "" || isDir(args[0]) {
				fmt.Fprintln(cmd.ErrOrStderr(), d.Results().Summary(opts.Color))
			}
			return err
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase logging verbosity (-v warn, -vv info, -vvv debug, -vvvv trace)")
	rootCmd.PersistentFlags().StringVar(&isaConfig, "isa-config", "", "ISA configuration TOML (defaults to the built-in AArch64 config)")
	rootCmd.PersistentFlags().BoolVar(&keepHistogram, "keep-histogram", false, "emit histogram output instead of a compiled assertion")

	rootCmd.Flags().StringVarP(&output, "output", "o", "", "output file or directory")
	rootCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing outputs")
	rootCmd.Flags().BoolVarP(&flatten, "flatten", "F", false, "write every output directly into the output directory (requires -o)")
	rootCmd.Flags().StringVarP(&ignoreList, "ignore-list", "x", "", "file listing test names to skip")
	rootCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "number of files translated in parallel (default GOMAXPROCS)")
	rootCmd.Flags().StringVar(&jsonLog, "json-log", "", "write one JSON record per translated file to this path")

	rootCmd.AddCommand(irCmd(), irdiffCmd(), evalCmd(), versionCmd())
	return rootCmd
}

// initLogging maps the -v count onto a level: none prints only critical
// messages, then warn, info, debug and trace.
func initLogging(v int) {
	lvl := log.LevelCrit
	if v > 0 {
		lvl = log.FromVerbosity(v + 1)
	}
	log.InitLoggerWithLevel(os.Stderr, lvl)
	if v >= 3 {
		log.EnableModules("all")
	}
}

func newTranslator() (*translate.Translator, error) {
	var (
		ctx *isa.Context
		err error
	)
	if isaConfig != "" {
		ctx, err = isa.Load(isaConfig)
	} else {
		ctx, err = isa.Default()
	}
	if err != nil {
		return nil, err
	}
	return translate.NewTranslator(ctx), nil
}

func mode() types.Mode {
	if keepHistogram {
		return types.Histogram
	}
	return types.CompiledAssertion
}

// colorOutput reports whether status lines written to w should be coloured.
func colorOutput(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && log.IsTerminal(f)
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
