// Command sarsim simulates or processes synthetic-aperture radar data and
// writes every produced artifact to a single run file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/catalog"
	"github.com/banshee-data/sarsim/internal/config"
	"github.com/banshee-data/sarsim/internal/console"
	"github.com/banshee-data/sarsim/internal/dsp"
	"github.com/banshee-data/sarsim/internal/monitoring"
	"github.com/banshee-data/sarsim/internal/pipeline"
	"github.com/banshee-data/sarsim/internal/report"
	"github.com/banshee-data/sarsim/internal/sarfile"
	"github.com/banshee-data/sarsim/internal/units"
	"github.com/banshee-data/sarsim/internal/version"
)

var logf = monitoring.Component("sarsim")

// cliFlags holds the parsed command line.
type cliFlags struct {
	configPath    string
	mode          string
	input         string
	output        string
	denoise       bool
	pulseCompress bool
	catalogPath   string
	listRuns      int
	plotsDir      string
	reportPath    string
	showVersion   bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{}
	fs := flag.NewFlagSet("sarsim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configPath, "config", "", "Radar config file (.json/.yaml). Defaults to "+config.DefaultConfigPath+" when present")
	fs.StringVar(&f.mode, "mode", "", "Run mode: s (simulate) or p (process). Prompts on stdin when empty")
	fs.StringVar(&f.input, "input", "", "Raw data file read in process mode")
	fs.StringVar(&f.output, "output", config.DefaultOutputPath, "Run file written on success")
	fs.BoolVar(&f.denoise, "denoise", false, "Apply the CinSnow filter to the radar image (flag mode only)")
	fs.BoolVar(&f.pulseCompress, "pulse-compress", false, "Pulse-compress the radar image (flag mode only)")
	fs.StringVar(&f.catalogPath, "catalog", "", "SQLite run catalog; runs are recorded when set")
	fs.IntVar(&f.listRuns, "list-runs", 0, "List the N most recent catalogued runs and exit (requires -catalog)")
	fs.StringVar(&f.plotsDir, "plots", "", "Directory for waveform PNG plots")
	fs.StringVar(&f.reportPath, "report", "", "Path of the HTML run report")
	fs.BoolVar(&f.showVersion, "version", false, "Print version information and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if f.listRuns > 0 && f.catalogPath == "" {
		return nil, errors.New("-list-runs requires -catalog")
	}
	return f, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one invocation and returns the process exit code: 0 only
// when the run was persisted.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}
	if flags.showVersion {
		fmt.Fprintln(stdout, version.String())
		return 0
	}
	if flags.listRuns > 0 {
		return listRuns(flags, stdout, stderr)
	}

	radar, err := loadRadarConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}

	opts, err := captureOptions(flags, stdin, stdout)
	if err != nil {
		printDiagnostic(stdout, err)
		logf("%v", err)
		return 1
	}

	store := artifact.NewStore()
	defer store.Release()

	var cat *catalog.Catalog
	var runID string
	if flags.catalogPath != "" {
		cat, err = catalog.Open(flags.catalogPath)
		if err != nil {
			fmt.Fprintf(stderr, "failed to open catalog: %v\n", err)
			return 1
		}
		defer cat.Close()
		if runID, err = cat.StartRun(opts); err != nil {
			fmt.Fprintf(stderr, "failed to record run: %v\n", err)
			return 1
		}
	}

	pcfg := pipeline.Config{
		Radar:   radar,
		Options: opts,
		Stages:  newStages(),
		Out:     stdout,
	}
	if cat != nil {
		pcfg.Observer = cat.Observer(runID)
	}
	p, err := pipeline.New(pcfg)
	if err != nil {
		fmt.Fprintf(stderr, "failed to build pipeline: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	res, runErr := p.Run(ctx, store)

	if cat != nil {
		if runErr != nil {
			err = cat.AbortRun(runID, runErr)
		} else {
			err = cat.FinishRun(runID, store, res.State)
		}
		if err != nil {
			logf("failed to update catalog run %s: %v", runID, err)
		}
	}

	if runErr != nil {
		printDiagnostic(stdout, runErr)
		return 1
	}
	logf("run completed in %v: %d artifacts written to %s", time.Since(start), res.Artifacts, res.State.OutputPath)

	// The run file is already in place; a report failure does not undo it.
	if err := writeReports(flags, store, res, runID, radar); err != nil {
		logf("%v", err)
		fmt.Fprintln(stderr, err)
	}
	return 0
}

// printDiagnostic writes the operator-facing message for err, in red when
// stdout is a terminal.
func printDiagnostic(w io.Writer, err error) {
	fmt.Fprintln(w, color.New(color.FgRed).Sprint(pipeline.Diagnostic(err)))
}

func newStages() pipeline.Stages {
	proc := dsp.New()
	return pipeline.Stages{
		Chirp:           proc,
		MatchedChirp:    proc,
		FFT:             proc,
		PulseCompressor: proc,
		Scene:           proc,
		Imager:          proc,
		Denoiser:        proc,
		ImageCompressor: proc,
		Backprojector:   proc,
		Spectrum:        proc,
		Reader:          sarfile.NewReader(nil),
		Persister:       sarfile.NewWriter(nil),
	}
}

// loadRadarConfig loads path, or the conventional defaults file when path
// is empty and that file exists. Otherwise every field takes its default.
func loadRadarConfig(path string) (*config.RadarConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.EmptyRadarConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	cfg, err := config.LoadRadarConfig(path)
	if err != nil {
		return nil, err
	}
	logf("loaded radar config from %s", path)
	return cfg, nil
}

// captureOptions builds the run options from flags when -mode is given and
// from console prompts otherwise. Either way every decision is made before
// the pipeline starts.
func captureOptions(flags *cliFlags, stdin io.Reader, stdout io.Writer) (config.Options, error) {
	defaults := config.Options{
		InputPath:             flags.input,
		OutputPath:            flags.output,
		Denoise:               flags.denoise,
		ImagePulseCompression: flags.pulseCompress,
	}

	var opts config.Options
	if flags.mode == "" {
		var err error
		opts, err = console.NewPrompter(stdin, stdout).CollectOptions(defaults)
		if err != nil {
			return opts, err
		}
	} else {
		if len(flags.mode) != 1 {
			return defaults, fmt.Errorf("%w: %q", config.ErrUnknownMode, flags.mode)
		}
		mode, err := config.ParseMode(flags.mode[0])
		if err != nil {
			return defaults, err
		}
		opts = defaults
		opts.Mode = mode
	}

	if err := opts.Validate(); err != nil {
		if errors.Is(err, config.ErrUnknownMode) {
			return opts, err
		}
		return opts, fmt.Errorf("%w: %v", config.ErrInput, err)
	}
	return opts, nil
}

func writeReports(flags *cliFlags, store *artifact.Store, res *pipeline.Result, runID string, radar *config.RadarConfig) error {
	if flags.plotsDir != "" {
		if _, err := report.WriteWaveformPlots(store, flags.plotsDir); err != nil {
			return fmt.Errorf("failed to write plots: %w", err)
		}
	}
	if flags.reportPath != "" {
		summary := report.Summary{
			RunID:           runID,
			Mode:            res.State.Mode.String(),
			OutputPath:      res.State.OutputPath,
			RangeResolution: units.FormatDistance(res.State.RangeResolutionM, radar.GetResolutionUnits()),
		}
		if err := report.WriteHTMLReport(nil, store, flags.reportPath, summary); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

func listRuns(flags *cliFlags, stdout, stderr io.Writer) int {
	cat, err := catalog.Open(flags.catalogPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open catalog: %v\n", err)
		return 1
	}
	defer cat.Close()

	runs, err := cat.ListRuns(flags.listRuns)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tMODE\tSTATUS\tARTIFACTS\tRESOLUTION_M\tSTARTED\tOUTPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.3f\t%s\t%s\n",
			r.ID, r.Mode, r.Status, r.ArtifactCount, r.RangeResolutionM,
			r.StartedAt.UTC().Format(time.RFC3339), r.OutputPath)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	return 0
}
