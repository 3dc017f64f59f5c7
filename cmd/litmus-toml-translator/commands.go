package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"

	"github.com/colorfulnotion/litmus/common"
	"github.com/colorfulnotion/litmus/exp"
	"github.com/colorfulnotion/litmus/translate"
	"github.com/colorfulnotion/litmus/types"
)

func loadIR(tr *translate.Translator, path string) (*types.Litmus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return tr.Parse(string(data), mode())
}

func irCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "ir FILE",
		Short: "Print the intermediate representation of a test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := newTranslator()
			if err != nil {
				return err
			}
			l, err := loadIR(tr, args[0])
			if err != nil {
				return err
			}
			switch format {
			case "tree":
				fmt.Fprint(cmd.OutOrStdout(), l.ToTree().String())
			case "json":
				out, err := l.ToJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			default:
				return fmt.Errorf("unknown format %q (tree or json)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "tree", "output format: tree or json")
	return cmd
}

func irdiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "irdiff A B",
		Short: "Show the differences between the IR of two tests",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := newTranslator()
			if err != nil {
				return err
			}
			var docs [2][]byte
			for i, path := range args {
				l, err := loadIR(tr, path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if docs[i], err = json.Marshal(l); err != nil {
					return err
				}
			}
			diff, err := irDiff(docs[0], docs[1], true)
			if err != nil {
				return err
			}
			if diff == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s and %s have identical IR\n", filepath.Base(args[0]), filepath.Base(args[1]))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), diff)
			return nil
		},
	}
}

// irDiff renders an ASCII diff of two JSON documents, or "" when they match.
func irDiff(left, right []byte, coloring bool) (string, error) {
	delta, err := gojsondiff.New().Compare(left, right)
	if err != nil {
		return "", err
	}
	if !delta.Modified() {
		return "", nil
	}
	var leftObj map[string]interface{}
	if err := json.Unmarshal(left, &leftObj); err != nil {
		return "", err
	}
	cfg := formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       coloring,
	}
	return formatter.NewAsciiFormatter(leftObj, cfg).Format(delta)
}

func evalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval",
		Short: "Interactively interpret reset value expressions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "> ",
				HistoryFile: filepath.Join(os.TempDir(), "litmus_eval_history.txt"),
			})
			if err != nil {
				return err
			}
			defer rl.Close()

			fmt.Fprintln(rl.Stdout(), "Enter a value such as 0x1000, pte3(x) or mkdesc3(oa=pa1). Type 'exit' to quit.")
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				line = strings.TrimSpace(line)
				switch line {
				case "":
					continue
				case "exit", "quit":
					return nil
				}
				fmt.Fprintln(rl.Stdout(), evalLine(line))
			}
		},
	}
}

// evalLine interprets one value expression and describes the result.
func evalLine(line string) string {
	e, err := exp.ParseValue(line)
	if err != nil {
		return "parse error: " + err.Error()
	}
	src, err := translate.Interpret(e)
	if err != nil {
		return "error: " + err.Error()
	}
	out := fmt.Sprintf("%T %s", src, src)
	if a, err := types.AsAsm(src); err == nil {
		out += "  asm: " + a
	}
	if c, err := types.AsCCode(src); err == nil {
		out += "  c: " + c
	}
	return out
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			commit := Commit
			if commit == "none" {
				commit = common.GetCommitHash()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "litmus-toml-translator %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:     %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  build time: %s\n", BuildTime)
		},
	}
}
