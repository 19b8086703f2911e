package datasplit

import (
	"context"
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClassPlan is the assignment of one class's images to partitions.
type ClassPlan struct {
	Class   string
	Dir     string                    // raw class directory
	Files   [len(Partitions)][]string // file names per partition, in shuffled order
	Skipped []string                  // dropped by image verification
	Info    map[string]imageInfo      // decoded headers, only when VerifyImages is on
}

// Total is the number of planned images of the class.
func (cp *ClassPlan) Total() int {
	n := 0
	for _, files := range cp.Files {
		n += len(files)
	}
	return n
}

// Plan is the in-memory split assignment for a whole dataset.
type Plan struct {
	RunID      string
	RawRoot    string
	OutputRoot string
	Seed       int64
	Ratios     [len(Partitions)]float64
	Classes    []ClassPlan
	Leaks      []Leak
}

// ClassNames returns the planned classes in sorted order.
func (p *Plan) ClassNames() []string {
	names := make([]string, len(p.Classes))
	for i := range p.Classes {
		names[i] = p.Classes[i].Class
	}
	return names
}

// Splitter plans and materialises dataset splits.
type Splitter struct {
	cfg    Config
	log    *zap.Logger
	rename func(oldpath, newpath string) error
}

// New validates cfg and returns a Splitter. Invalid settings yield a
// *ConfigurationError.
func New(cfg Config) (*Splitter, error) {
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{cfg: cfg, log: cfg.Logger, rename: os.Rename}, nil
}

// Config returns the effective configuration after defaults.
func (s *Splitter) Config() Config { return s.cfg }

// Run plans the split and materialises it. Nothing under the output root is
// touched unless every class can be split.
func (s *Splitter) Run(ctx context.Context) (Summary, error) {
	plan, err := s.Plan(ctx)
	if err != nil {
		return Summary{}, err
	}
	return s.Materialize(ctx, plan)
}

// Plan enumerates classes, applies the overwrite guard and computes the
// assignment for every class without writing anything.
func (s *Splitter) Plan(ctx context.Context) (*Plan, error) {
	classes, err := ListClasses(s.cfg.RawRoot)
	if err != nil {
		return nil, err
	}
	s.log.Info("found classes", zap.Strings("classes", classes))

	if err := s.checkOutput(); err != nil {
		return nil, err
	}

	// One generator for the whole run, seeded before the first class.
	rng := rand.New(rand.NewPCG(uint64(s.cfg.Seed), uint64(s.cfg.Seed))) //nolint:gosec // reproducible shuffle, not security

	plan := &Plan{
		RunID:      uuid.NewString(),
		RawRoot:    s.cfg.RawRoot,
		OutputRoot: s.cfg.OutputRoot,
		Seed:       s.cfg.Seed,
		Ratios:     [len(Partitions)]float64{s.cfg.TrainRatio, s.cfg.ValRatio, s.cfg.TestRatio},
		Classes:    make([]ClassPlan, 0, len(classes)),
	}

	for _, class := range classes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cp, err := s.planClass(class, rng)
		if err != nil {
			return nil, err
		}
		plan.Classes = append(plan.Classes, cp)
	}

	if s.cfg.LeakThreshold > 0 {
		leaks, err := s.auditLeaks(ctx, plan)
		if err != nil {
			return nil, err
		}
		plan.Leaks = leaks
	}

	return plan, nil
}

func (s *Splitter) planClass(class string, rng *rand.Rand) (ClassPlan, error) {
	dir := filepath.Join(s.cfg.RawRoot, class)
	images, err := listImages(dir, s.cfg.Extensions)
	if err != nil {
		return ClassPlan{}, &ConfigurationError{Field: "raw_root", Reason: "cannot list class " + class, Err: err}
	}

	cp := ClassPlan{Class: class, Dir: dir}
	if s.cfg.VerifyImages {
		images, cp.Skipped, cp.Info = s.verifyImages(dir, images)
	}
	if len(images) == 0 {
		return ClassPlan{}, &EmptyClassError{Class: class, Dir: dir}
	}

	rng.Shuffle(len(images), func(i, j int) {
		images[i], images[j] = images[j], images[i]
	})

	trainEnd, valEnd := splitBoundaries(len(images), s.cfg.TrainRatio, s.cfg.ValRatio)
	cp.Files[PartitionTrain] = images[:trainEnd]
	cp.Files[PartitionVal] = images[trainEnd:valEnd]
	cp.Files[PartitionTest] = images[valEnd:]

	for _, files := range cp.Files {
		if len(files) == 0 {
			return ClassPlan{}, &DegenerateSplitError{
				Class: class,
				Total: len(images),
				Train: len(cp.Files[PartitionTrain]),
				Val:   len(cp.Files[PartitionVal]),
				Test:  len(cp.Files[PartitionTest]),
			}
		}
	}

	s.log.Debug("planned class",
		zap.String("class", class),
		zap.Int("total", len(images)),
		zap.Int("train", len(cp.Files[PartitionTrain])),
		zap.Int("val", len(cp.Files[PartitionVal])),
		zap.Int("test", len(cp.Files[PartitionTest])),
	)
	return cp, nil
}

// splitBoundaries truncates n*ratio for train and train+val; the test
// partition takes whatever remains, so it never gets less than its share.
func splitBoundaries(n int, trainRatio, valRatio float64) (trainEnd, valEnd int) {
	trainEnd = int(float64(n) * trainRatio)
	valEnd = trainEnd + int(float64(n)*valRatio)
	if valEnd > n {
		valEnd = n
	}
	return trainEnd, valEnd
}

func (s *Splitter) verifyImages(dir string, names []string) (ok, skipped []string, info map[string]imageInfo) {
	info = make(map[string]imageInfo, len(names))
	for _, name := range names {
		ii, err := probeImage(filepath.Join(dir, name))
		if err != nil {
			s.log.Warn("skipping undecodable image", zap.String("path", filepath.Join(dir, name)), zap.Error(err))
			skipped = append(skipped, name)
			continue
		}
		info[name] = ii
		ok = append(ok, name)
	}
	return ok, skipped, info
}

// checkOutput enforces the overwrite policy without modifying anything.
func (s *Splitter) checkOutput() error {
	_, err := os.Lstat(s.cfg.OutputRoot)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return &ConfigurationError{Field: "output_root", Reason: "cannot stat " + s.cfg.OutputRoot, Err: err}
	case s.cfg.Overwrite == OverwriteReplace:
		return nil
	default:
		return &OutputExistsError{Path: s.cfg.OutputRoot}
	}
}
