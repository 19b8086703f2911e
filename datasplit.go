// Package datasplit partitions a class-labelled image dataset into train,
// validation and test folders with a seeded, reproducible shuffle.
//
// The raw dataset is laid out as <raw>/<class>/<image>; the output mirrors
// it under <out>/{train,val,test}/<class>/<image>. An existing output tree is
// treated as a frozen split and is only replaced under OverwriteReplace.
package datasplit

import (
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// Default split settings.
const (
	DefaultTrainRatio = 0.7
	DefaultValRatio   = 0.15
	DefaultTestRatio  = 0.15
	DefaultSeed       = 42
)

// ratioTolerance bounds how far the three ratios may drift from 1.0.
const ratioTolerance = 1e-6

// DefaultExtensions are the image suffixes recognised when Config.Extensions is empty.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Partition is one of the three disjoint subsets every class is divided into.
type Partition int

const (
	PartitionTrain Partition = iota
	PartitionVal
	PartitionTest
)

// Partitions lists every partition in output order.
var Partitions = [...]Partition{PartitionTrain, PartitionVal, PartitionTest}

// String returns the partition's directory name.
func (p Partition) String() string {
	switch p {
	case PartitionTrain:
		return "train"
	case PartitionVal:
		return "val"
	case PartitionTest:
		return "test"
	default:
		return "unknown"
	}
}

// MarshalText encodes the partition as its directory name.
func (p Partition) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts a partition directory name.
func (p *Partition) UnmarshalText(text []byte) error {
	for _, candidate := range Partitions {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("datasplit: unknown partition %q", text)
}

// OverwritePolicy decides what happens when the output root already exists.
type OverwritePolicy int

const (
	// OverwriteRefuse fails with OutputExistsError and leaves the output untouched.
	OverwriteRefuse OverwritePolicy = iota
	// OverwriteReplace destroys the existing output once the new split is built.
	OverwriteReplace
)

// String returns the policy name accepted by ParseOverwritePolicy.
func (p OverwritePolicy) String() string {
	switch p {
	case OverwriteReplace:
		return "replace"
	default:
		return "refuse"
	}
}

// ParseOverwritePolicy accepts "refuse" or "replace" (case-insensitive).
// An empty string means OverwriteRefuse.
func ParseOverwritePolicy(s string) (OverwritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "refuse":
		return OverwriteRefuse, nil
	case "replace":
		return OverwriteReplace, nil
	default:
		return OverwriteRefuse, &ConfigurationError{Field: "overwrite", Reason: fmt.Sprintf("unknown policy %q (want refuse or replace)", s)}
	}
}

// Config holds the split settings and injected dependencies.
type Config struct {
	RawRoot    string // class-per-directory input, never modified
	OutputRoot string // split tree destination

	// Ratios must each lie in (0,1] and sum to 1. All three zero means
	// DefaultTrainRatio / DefaultValRatio / DefaultTestRatio.
	TrainRatio float64
	ValRatio   float64
	TestRatio  float64

	Seed      int64
	Overwrite OverwritePolicy

	// Extensions are matched case-insensitively against file name suffixes.
	// Default: DefaultExtensions.
	Extensions []string

	Workers int // copy/hash pool size (default: runtime.NumCPU())

	// VerifyImages drops files whose image header cannot be decoded.
	VerifyImages bool

	// LeakThreshold enables the near-duplicate audit across partitions:
	// pairs with dHash distance below it are reported. 0 disables the audit.
	LeakThreshold int

	ManifestPath     string // optional JSON manifest of the assignment
	ClassMappingPath string // optional {"0": "class", ...} file

	Logger *zap.Logger // nil = no logging
}

// defaults fills zero-value fields.
func (c *Config) defaults() {
	if c.TrainRatio == 0 && c.ValRatio == 0 && c.TestRatio == 0 {
		c.TrainRatio = DefaultTrainRatio
		c.ValRatio = DefaultValRatio
		c.TestRatio = DefaultTestRatio
	}
	if len(c.Extensions) == 0 {
		c.Extensions = DefaultExtensions
	}
	c.Extensions = NormalizeExtensions(c.Extensions)
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Validate checks the configuration without touching the filesystem.
func (c *Config) Validate() error {
	if c.RawRoot == "" {
		return &ConfigurationError{Field: "raw_root", Reason: "must be set"}
	}
	if c.OutputRoot == "" {
		return &ConfigurationError{Field: "output_root", Reason: "must be set"}
	}

	for _, r := range []struct {
		field string
		v     float64
	}{
		{"train_ratio", c.TrainRatio},
		{"val_ratio", c.ValRatio},
		{"test_ratio", c.TestRatio},
	} {
		if math.IsNaN(r.v) || r.v <= 0 || r.v > 1 {
			return &ConfigurationError{Field: r.field, Reason: fmt.Sprintf("%v is outside (0, 1]", r.v)}
		}
	}
	if sum := c.TrainRatio + c.ValRatio + c.TestRatio; math.Abs(sum-1.0) >= ratioTolerance {
		return &ConfigurationError{Field: "ratios", Reason: fmt.Sprintf("train/val/test ratios sum to %v, want 1", sum)}
	}

	if len(c.Extensions) == 0 {
		return &ConfigurationError{Field: "valid_extensions", Reason: "at least one extension is required"}
	}
	if c.LeakThreshold < 0 {
		return &ConfigurationError{Field: "leak_threshold", Reason: "must not be negative"}
	}

	raw, err := filepath.Abs(c.RawRoot)
	if err != nil {
		return &ConfigurationError{Field: "raw_root", Reason: "cannot resolve path", Err: err}
	}
	out, err := filepath.Abs(c.OutputRoot)
	if err != nil {
		return &ConfigurationError{Field: "output_root", Reason: "cannot resolve path", Err: err}
	}
	if within(raw, out) || within(out, raw) {
		return &ConfigurationError{Field: "output_root", Reason: fmt.Sprintf("%s and %s must not contain each other", c.RawRoot, c.OutputRoot)}
	}

	// The raw dataset is read-only; artifacts go elsewhere.
	for _, a := range []struct{ field, path string }{
		{"manifest", c.ManifestPath},
		{"class_mapping", c.ClassMappingPath},
	} {
		if a.path == "" {
			continue
		}
		p, err := filepath.Abs(a.path)
		if err != nil {
			return &ConfigurationError{Field: a.field, Reason: "cannot resolve path", Err: err}
		}
		if within(raw, p) {
			return &ConfigurationError{Field: a.field, Reason: fmt.Sprintf("%s is inside the raw dataset %s", a.path, c.RawRoot)}
		}
	}
	return nil
}

// within reports whether path equals dir or lies beneath it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// NormalizeExtensions lowercases, trims and dot-prefixes every suffix and
// drops blanks and duplicates, keeping first-seen order.
func NormalizeExtensions(exts []string) []string {
	seen := make(map[string]bool, len(exts))
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == "." {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
