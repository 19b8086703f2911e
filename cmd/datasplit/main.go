// Command datasplit partitions a class-per-directory image dataset into
// train/val/test folders.
//
//	datasplit -config configs/ring_material.yaml
//	datasplit -raw data/raw/jewellery_type -out data/splits/jewellery_type -force
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	datasplit "github.com/anatolykoptev/go-datasplit"
	"github.com/anatolykoptev/go-datasplit/internal/config"
	"github.com/anatolykoptev/go-datasplit/internal/logger"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cliFlags mirrors config.Settings; only flags given on the command line
// override the file and environment.
type cliFlags struct {
	config        string
	raw           string
	out           string
	train         float64
	val           float64
	test          float64
	seed          int64
	overwrite     string
	force         bool
	ext           string
	workers       int
	verify        bool
	leakThreshold int
	manifest      string
	classMapping  string
	dryRun        bool
	logLevel      string
	logFormat     string
	logFile       string
}

func newFlagSet(f *cliFlags, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("datasplit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.config, "config", "", "YAML config file")
	fs.StringVar(&f.raw, "raw", "", "raw dataset root (one subdirectory per class)")
	fs.StringVar(&f.out, "out", "", "output root for train/val/test")
	fs.Float64Var(&f.train, "train", datasplit.DefaultTrainRatio, "train ratio")
	fs.Float64Var(&f.val, "val", datasplit.DefaultValRatio, "validation ratio")
	fs.Float64Var(&f.test, "test", datasplit.DefaultTestRatio, "test ratio")
	fs.Int64Var(&f.seed, "seed", datasplit.DefaultSeed, "shuffle seed")
	fs.StringVar(&f.overwrite, "overwrite", "", "existing output policy: refuse or replace")
	fs.BoolVar(&f.force, "force", false, "shorthand for -overwrite=replace")
	fs.StringVar(&f.ext, "ext", "", "comma-separated image extensions (default .jpg,.jpeg,.png,.webp)")
	fs.IntVar(&f.workers, "workers", 0, "parallel copy workers (0 = number of CPUs)")
	fs.BoolVar(&f.verify, "verify", false, "skip files whose image header cannot be decoded")
	fs.IntVar(&f.leakThreshold, "leak-threshold", 0, "report near-duplicates across partitions below this dHash distance (0 = off)")
	fs.StringVar(&f.manifest, "manifest", "", "write a JSON manifest of the assignment to this path")
	fs.StringVar(&f.classMapping, "class-mapping", "", "write the class index mapping JSON to this path")
	fs.BoolVar(&f.dryRun, "dry-run", false, "plan and print the split without copying")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "", "console or json")
	fs.StringVar(&f.logFile, "log-file", "", "also log to this rotating file")
	return fs
}

// apply copies explicitly set flags onto s.
func (f *cliFlags) apply(fs *flag.FlagSet, s *config.Settings) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "raw":
			s.RawRoot = f.raw
		case "out":
			s.OutputRoot = f.out
		case "train":
			s.TrainRatio = f.train
		case "val":
			s.ValRatio = f.val
		case "test":
			s.TestRatio = f.test
		case "seed":
			s.Seed = f.seed
		case "overwrite":
			s.Overwrite = f.overwrite
		case "force":
			if f.force {
				s.Overwrite = datasplit.OverwriteReplace.String()
			}
		case "ext":
			s.Extensions = strings.Split(f.ext, ",")
		case "workers":
			s.Workers = f.workers
		case "verify":
			s.VerifyImages = f.verify
		case "leak-threshold":
			s.LeakThreshold = f.leakThreshold
		case "manifest":
			s.Manifest = f.manifest
		case "class-mapping":
			s.ClassMapping = f.classMapping
		case "log-level":
			s.Log.Level = f.logLevel
		case "log-format":
			s.Log.Format = f.logFormat
		case "log-file":
			s.Log.File = f.logFile
		}
	})
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var f cliFlags
	fs := newFlagSet(&f, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}

	settings, err := config.Load(f.config)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitConfig
	}
	f.apply(fs, &settings)

	log, err := logger.New(logger.Options{
		Level:  settings.Log.Level,
		Format: settings.Log.Format,
		File:   settings.Log.File,
	})
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitConfig
	}
	defer func() { _ = log.Sync() }()

	cfg, err := settings.SplitConfig(log)
	if err != nil {
		return report(stderr, log, err)
	}
	splitter, err := datasplit.New(cfg)
	if err != nil {
		return report(stderr, log, err)
	}

	plan, err := splitter.Plan(ctx)
	if err != nil {
		return report(stderr, log, err)
	}
	fmt.Fprintf(stdout, "Found classes: %s\n\n", strings.Join(plan.ClassNames(), ", "))

	if f.dryRun {
		if err := plan.Summarize().WriteTable(stdout); err != nil {
			return report(stderr, log, err)
		}
		fmt.Fprintln(stdout, "\nDry run: no files were copied.")
		return exitOK
	}

	fmt.Fprintln(stdout, "Splitting dataset...")
	summary, err := splitter.Materialize(ctx, plan)
	if err != nil {
		return report(stderr, log, err)
	}
	fmt.Fprintln(stdout)
	if err := summary.WriteTable(stdout); err != nil {
		return report(stderr, log, err)
	}
	fmt.Fprintln(stdout, "\nDataset split completed successfully.")
	return exitOK
}

// report prints err and maps it to an exit status.
func report(stderr io.Writer, log *zap.Logger, err error) int {
	log.Error("dataset split failed", zap.Error(err))
	fmt.Fprintln(stderr, "error:", err)
	if errors.Is(err, datasplit.ErrConfiguration) {
		return exitConfig
	}
	return exitFailed
}
