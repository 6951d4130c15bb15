// Command prep turns raw STATS19 collision records into model-ready bicycle
// casualty tables. In fit mode it learns imputation and encoding artifacts
// from a training file; in apply mode it reuses saved artifacts on another
// file so both share one column set.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/banshee-data/casualty.report/internal/config"
	"github.com/banshee-data/casualty.report/internal/fsutil"
	"github.com/banshee-data/casualty.report/internal/pipeline"
	"github.com/banshee-data/casualty.report/internal/report"
	"github.com/banshee-data/casualty.report/internal/table"
	"github.com/banshee-data/casualty.report/internal/timeutil"
	"github.com/banshee-data/casualty.report/internal/version"
)

// Env holds overrides read from CASUALTY_PREP_* variables. Flags win over
// the environment, which wins over the config file.
type Env struct {
	Config    string  `envconfig:"CONFIG"`
	Seed      *uint64 `envconfig:"SEED"`
	ReportDir string  `envconfig:"REPORT_DIR"`
}

// Options holds the parsed command line.
type Options struct {
	Mode       string
	In         string
	Out        string
	Artifacts  string
	ConfigPath string
	Seed       *uint64
	ReportDir  string
}

func main() {
	opts, showVersion := parseFlags()
	if showVersion {
		fmt.Println(version.String())
		return
	}

	var env Env
	if err := envconfig.Process("CASUALTY_PREP", &env); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}
	opts = mergeEnv(opts, env)

	if err := run(opts, fsutil.OSFileSystem{}, timeutil.RealClock{}); err != nil {
		log.Fatalf("prep %s failed: %v", opts.Mode, err)
	}
}

func parseFlags() (Options, bool) {
	var opts Options
	var seed uint64
	var showVersion bool

	flag.StringVar(&opts.Mode, "mode", "fit", "Run mode: fit or apply")
	flag.StringVar(&opts.In, "in", "", "Input table (.csv or .xlsx)")
	flag.StringVar(&opts.Out, "out", "", "Output table (.csv or .xlsx)")
	flag.StringVar(&opts.Artifacts, "artifacts", "", "Artifacts JSON path (written in fit mode, read in apply mode)")
	flag.StringVar(&opts.ConfigPath, "config", "", "Pipeline config (.json, .yaml or .yml)")
	flag.Uint64Var(&seed, "seed", 0, "Random seed for categorical imputation (overrides config)")
	flag.StringVar(&opts.ReportDir, "report", "", "Directory for the diagnostics report (fit mode only)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			opts.Seed = &seed
		}
	})
	return opts, showVersion
}

func mergeEnv(opts Options, env Env) Options {
	if opts.ConfigPath == "" {
		opts.ConfigPath = env.Config
	}
	if opts.Seed == nil {
		opts.Seed = env.Seed
	}
	if opts.ReportDir == "" {
		opts.ReportDir = env.ReportDir
	}
	return opts
}

func loadConfig(opts Options) (*config.PipelineConfig, error) {
	cfg := config.EmptyPipelineConfig()
	if opts.ConfigPath != "" {
		loaded, err := config.LoadPipelineConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.Seed != nil {
		cfg.Seed = opts.Seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(opts Options, fsys fsutil.FileSystem, clock timeutil.Clock) error {
	start := clock.Now()
	if opts.In == "" || opts.Out == "" || opts.Artifacts == "" {
		return fmt.Errorf("-in, -out and -artifacts are required")
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	raw, err := table.Load(fsys, opts.In)
	if err != nil {
		return err
	}
	log.Printf("Loaded %d records with %d columns from %s", raw.Len(), len(raw.Columns()), opts.In)

	var out *table.Table
	switch opts.Mode {
	case "fit":
		var art *pipeline.Artifacts
		out, art, err = pipeline.Fit(raw, cfg, clock)
		if err != nil {
			return err
		}
		if err := pipeline.SaveArtifacts(fsys, opts.Artifacts, art); err != nil {
			return err
		}
		log.Printf("Saved artifacts for run %s to %s", art.RunID, opts.Artifacts)
		if opts.ReportDir != "" {
			if err := writeReport(fsys, opts.ReportDir, art, out, cfg); err != nil {
				return err
			}
		}
	case "apply":
		art, err := pipeline.LoadArtifacts(fsys, opts.Artifacts)
		if err != nil {
			return err
		}
		out, err = pipeline.Apply(raw, art, cfg)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown mode %q (want fit or apply)", opts.Mode)
	}

	if err := table.Save(fsys, opts.Out, out); err != nil {
		return err
	}
	log.Printf("Wrote %d rows with %d columns to %s", out.Len(), len(out.Columns()), opts.Out)
	log.Printf("prep %s finished in %v", opts.Mode, clock.Since(start).Round(time.Millisecond))
	return nil
}

// writeReport writes report.html, summary.csv and one histogram per
// continuous column of the fitted output into dir.
func writeReport(fsys fsutil.FileSystem, dir string, art *pipeline.Artifacts, out *table.Table, cfg *config.PipelineConfig) error {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	html, err := fsys.Create(filepath.Join(dir, "report.html"))
	if err != nil {
		return err
	}
	if err := report.WriteHTML(html, art.Imputation, art.Missing); err != nil {
		html.Close()
		return err
	}
	if err := html.Close(); err != nil {
		return err
	}

	summaries := report.Summarize(out, cfg.GetContinuousColumns())
	f, err := fsys.Create(filepath.Join(dir, "summary.csv"))
	if err != nil {
		return err
	}
	if err := report.WriteSummaryCSV(f, summaries); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if _, err := report.SaveHistograms(fsys, dir, out, cfg.GetContinuousColumns()); err != nil {
		return err
	}
	log.Printf("Wrote report to %s", dir)
	return nil
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -mode fit|apply -in FILE -out FILE -artifacts FILE [options]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
}
