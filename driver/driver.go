// Package driver runs the translator over files, directories and streams,
// and reports per file outcomes.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/colorfulnotion/litmus/common"
	"github.com/colorfulnotion/litmus/emit"
	"github.com/colorfulnotion/litmus/litmuserrors"
	"github.com/colorfulnotion/litmus/log"
	"github.com/colorfulnotion/litmus/translate"
	"github.com/colorfulnotion/litmus/types"
)

var (
	ErrFlattenWithoutOutput = errors.New("can only flatten output if output directory specified (-o)")
	ErrOutputExists         = errors.New("output file exists (and is not a directory)")
)

const outputSuffix = ".c"

type Options struct {
	// Output is a file or directory; empty means stdout for single inputs
	// and beside the input otherwise.
	Output     string
	Force      bool
	Flatten    bool
	IgnoreList string
	Mode       types.Mode
	// Jobs bounds concurrent translations; 0 uses GOMAXPROCS.
	Jobs int
	// Color enables ANSI colour on status lines.
	Color   bool
	Status  io.Writer
	Records *log.RecordWriter
}

type Driver struct {
	tr     *translate.Translator
	opts   Options
	ignore map[string]bool

	mu      sync.Mutex
	results TranslationResults
}

// New validates the options and loads the ignore list.
func New(tr *translate.Translator, opts Options) (*Driver, error) {
	if opts.Flatten && opts.Output == "" {
		return nil, ErrFlattenWithoutOutput
	}
	if opts.Output != "" && !opts.Force {
		if fi, err := os.Stat(opts.Output); err == nil && !fi.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrOutputExists, opts.Output)
		}
	}
	if opts.Status == nil {
		opts.Status = os.Stderr
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	d := &Driver{tr: tr, opts: opts, ignore: make(map[string]bool)}
	if opts.IgnoreList != "" {
		data, err := os.ReadFile(opts.IgnoreList)
		if err != nil {
			return nil, fmt.Errorf("ignore list: %w", err)
		}
		d.ignore = ParseIgnoreList(string(data))
	}
	return d, nil
}

// ParseIgnoreList reads one file name per line. Text after '#' is a comment.
func ParseIgnoreList(text string) map[string]bool {
	names := make(map[string]bool)
	for _, ln := range strings.Split(text, "\n") {
		if name, _, found := strings.Cut(ln, "#"); found {
			ln = name
		}
		if ln = strings.TrimSpace(ln); ln != "" {
			names[ln] = true
		}
	}
	return names
}

// Translate runs one TOML document through the translator and the emitter.
func (d *Driver) Translate(contents string) (string, error) {
	l, err := d.tr.Parse(contents, d.opts.Mode)
	if err != nil {
		return "", err
	}
	return emit.Write(l, d.opts.Mode)
}

func (d *Driver) Results() TranslationResults {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.results
}

// TranslateStream translates a whole document read from r into Output, or
// into w when no output is set.
func (d *Driver) TranslateStream(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	code, err := d.Translate(string(data))
	if err != nil {
		return err
	}
	if d.opts.Output == "" {
		_, err = io.WriteString(w, code+"\n")
		return err
	}
	if err := os.WriteFile(d.opts.Output, []byte(code), 0o644); err != nil {
		return err
	}
	log.Info(log.DriverMonitoring, "successfully translated stdin", "output", d.opts.Output)
	return nil
}

type job struct {
	input  string
	output string
}

func isToml(path string) bool {
	return filepath.Ext(path) == ".toml"
}

// Run translates inputs. A single file with no Output is printed to w;
// everything else is written to files.
func (d *Driver) Run(ctx context.Context, inputs []string, w io.Writer) error {
	if len(inputs) == 1 && d.opts.Output == "" {
		if fi, err := os.Stat(inputs[0]); err == nil && !fi.IsDir() {
			return d.printFile(inputs[0], w)
		}
	}

	var jobs []job
	for _, in := range inputs {
		found, err := d.plan(in, len(inputs))
		if err != nil {
			return err
		}
		jobs = append(jobs, found...)
	}
	log.Debug(log.DriverMonitoring, "planned translations", "inputs", len(inputs), "files", len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Jobs)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return d.runJob(j)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (d *Driver) printFile(path string, w io.Writer) error {
	if d.ignore[filepath.Base(path)] {
		log.Warn(log.DriverMonitoring, "skipping file as it's present in ignore list", "file", path)
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	code, err := d.Translate(string(data))
	if err != nil {
		log.Error(log.DriverMonitoring, "failed to translate", "file", path, "err", err)
		return err
	}
	_, err = io.WriteString(w, code+"\n")
	return err
}

// target describes where the outputs of one input go. An empty root means
// beside the input; otherwise root is either the output file itself or the
// directory the outputs are mirrored into.
type target struct {
	root string
	dir  bool
}

func (d *Driver) targetFor(input string, isDir bool, count int) target {
	out := d.opts.Output
	switch {
	case out == "":
		return target{}
	case isDir && count == 1:
		return target{root: out, dir: true}
	case isDir:
		return target{root: filepath.Join(out, filepath.Base(input)), dir: true}
	case count > 1 || strings.HasSuffix(out, string(filepath.Separator)):
		return target{root: out, dir: true}
	}
	if fi, err := os.Stat(out); err == nil && fi.IsDir() {
		return target{root: out, dir: true}
	}
	return target{root: out}
}

func (d *Driver) outputFor(t target, input, file string) string {
	name := filepath.Base(file) + outputSuffix
	switch {
	case d.opts.Flatten:
		return filepath.Join(d.opts.Output, name)
	case t.root == "":
		return file + outputSuffix
	case !t.dir:
		return t.root
	}
	rel, err := filepath.Rel(input, file)
	if err != nil || rel == "." {
		rel = filepath.Base(file)
	}
	return filepath.Join(t.root, rel) + outputSuffix
}

func (d *Driver) plan(input string, count int) ([]job, error) {
	fi, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if d.ignore[filepath.Base(input)] {
		d.skip(input, "in ignore list")
		return nil, nil
	}
	if !fi.IsDir() {
		if !isToml(input) {
			log.Info(log.DriverMonitoring, "skipping non toml file", "file", input)
			return nil, nil
		}
		return d.claim(nil, input, d.outputFor(d.targetFor(input, false, count), input, input)), nil
	}

	t := d.targetFor(input, true, count)

	var jobs []job
	err = filepath.WalkDir(input, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == input {
			return nil
		}
		if d.ignore[e.Name()] {
			d.skip(path, "in ignore list")
			if e.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if e.IsDir() || !isToml(path) {
			return nil
		}
		jobs = d.claim(jobs, path, d.outputFor(t, input, path))
		return nil
	})
	return jobs, err
}

// claim adds the job unless its output already exists and Force is unset.
func (d *Driver) claim(jobs []job, input, output string) []job {
	if _, err := os.Stat(output); err == nil && !d.opts.Force {
		log.Warn(log.DriverMonitoring, "file exists. skipping...", "file", output)
		d.skip(input, output+" exists")
		return jobs
	}
	return append(jobs, job{input: input, output: output})
}

func (d *Driver) skip(input, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results.Skipped++
	fmt.Fprintf(d.opts.Status, "%s %s (%s)\n", d.color("Skipping", common.ColorYellow), d.color(input), reason)
	if err := d.opts.Records.Write(log.TranslationRecord{Input: input, Outcome: "skipped", Error: reason}); err != nil {
		log.Warn(log.DriverMonitoring, "dropping translation record", "file", input, "err", err)
	}
}

func (d *Driver) color(s string, codes ...string) string {
	return common.Colorize(d.opts.Color, s, append(codes, common.ColorBold)...)
}

// runJob translates one file. Translation failures are counted, not
// returned; only I/O errors on the output or the record log stop the run.
func (d *Driver) runJob(j job) error {
	start := time.Now()
	data, err := os.ReadFile(j.input)
	var code string
	if err == nil {
		code, err = d.Translate(string(data))
	}
	rec := log.TranslationRecord{Input: j.input, Elapsed: uint32(time.Since(start).Microseconds())}

	if err != nil {
		rec.ErrorCode = litmuserrors.GetErrorCode(err)
		rec.Error = err.Error()
		d.mu.Lock()
		defer d.mu.Unlock()
		if litmuserrors.IsUnsupported(err) {
			log.Error(log.DriverMonitoring, "unsupported test", "file", j.input, "err", err)
			d.results.Unsupported++
			rec.Outcome = "unsupported"
			fmt.Fprintf(d.opts.Status, "%s %s\n", d.color("Unsupported", common.ColorBlue), d.color(j.input))
		} else {
			log.Error(log.DriverMonitoring, "error translating test", "file", j.input, "err", err)
			d.results.Failed++
			rec.Outcome = "failed"
			fmt.Fprintf(d.opts.Status, "%s translating %s\n", d.color("Error", common.ColorRed), d.color(j.input))
		}
		return d.opts.Records.Write(rec)
	}

	if err := os.MkdirAll(filepath.Dir(j.output), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(j.output, []byte(code), 0o644); err != nil {
		return err
	}
	log.Info(log.DriverMonitoring, "successfully translated", "input", j.input, "output", j.output)

	rec.Outcome = "succeeded"
	rec.Output = j.output
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results.Succeeded++
	fmt.Fprintf(d.opts.Status, "%s %s -> %s\n", d.color("Success", common.ColorGreen), d.color(j.input), d.color(j.output))
	return d.opts.Records.Write(rec)
}
