package datasplit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Manifest records which partition every image was assigned to.
type Manifest struct {
	RunID     string          `json:"run_id"`
	CreatedAt time.Time       `json:"created_at"`
	RawRoot   string          `json:"raw_root"`
	Output    string          `json:"output_root"`
	Seed      int64           `json:"seed"`
	Ratios    ManifestRatios  `json:"ratios"`
	Classes   []ClassSummary  `json:"classes"`
	Files     []ManifestEntry `json:"files"`
	Leaks     []Leak          `json:"leaks,omitempty"`
}

// ManifestRatios are the configured partition fractions.
type ManifestRatios struct {
	Train float64 `json:"train"`
	Val   float64 `json:"val"`
	Test  float64 `json:"test"`
}

// ManifestEntry describes one copied image.
type ManifestEntry struct {
	Class     string         `json:"class"`
	Partition Partition      `json:"partition"`
	Name      string         `json:"name"`
	Size      int64          `json:"size"`
	Format    string         `json:"format,omitempty"`
	Width     int            `json:"width,omitempty"`
	Height    int            `json:"height,omitempty"`
	Rights    Rights         `json:"rights"`
	Metadata  *ImageMetadata `json:"metadata,omitempty"`
}

// BuildManifest describes the plan as it was materialised. File sizes,
// headers and metadata are read from the raw dataset.
func BuildManifest(plan *Plan, summary Summary) (*Manifest, error) {
	m := &Manifest{
		RunID:     plan.RunID,
		CreatedAt: time.Now().UTC(),
		RawRoot:   plan.RawRoot,
		Output:    plan.OutputRoot,
		Seed:      plan.Seed,
		Ratios: ManifestRatios{
			Train: plan.Ratios[PartitionTrain],
			Val:   plan.Ratios[PartitionVal],
			Test:  plan.Ratios[PartitionTest],
		},
		Classes: summary.Classes,
		Leaks:   plan.Leaks,
	}

	for i := range plan.Classes {
		cp := &plan.Classes[i]
		for _, p := range Partitions {
			for _, name := range cp.Files[p] {
				path := filepath.Join(cp.Dir, name)
				info, err := os.Stat(path)
				if err != nil {
					return nil, fmt.Errorf("datasplit: manifest: %w", err)
				}
				entry := ManifestEntry{Class: cp.Class, Partition: p, Name: name, Size: info.Size()}

				ii, ok := cp.Info[name]
				if !ok {
					ii, _ = probeImage(path)
				}
				entry.Format, entry.Width, entry.Height = ii.Format, ii.Width, ii.Height

				entry.Rights, entry.Metadata = ReadImageRights(path)
				m.Files = append(m.Files, entry)
			}
		}
	}
	return m, nil
}

// ClassMapping returns {"0": class0, "1": class1, ...} in sorted class order,
// matching the indices a directory-based image loader assigns.
func ClassMapping(classes []string) map[string]string {
	m := make(map[string]string, len(classes))
	for i, c := range classes {
		m[strconv.Itoa(i)] = c
	}
	return m
}

// writeArtifacts writes the optional manifest and class mapping files.
func (s *Splitter) writeArtifacts(plan *Plan, summary Summary) error {
	if s.cfg.ManifestPath != "" {
		m, err := BuildManifest(plan, summary)
		if err != nil {
			return err
		}
		if err := writeJSON(s.cfg.ManifestPath, m); err != nil {
			return err
		}
		stock := 0
		for _, f := range m.Files {
			if f.Rights == RightsStock {
				stock++
			}
		}
		if stock > 0 {
			s.log.Warn("images with stock-agency metadata in dataset", zap.Int("count", stock))
		}
		s.log.Info("manifest written", zap.String("path", s.cfg.ManifestPath), zap.Int("files", len(m.Files)))
	}

	if s.cfg.ClassMappingPath != "" {
		if err := writeJSON(s.cfg.ClassMappingPath, ClassMapping(plan.ClassNames())); err != nil {
			return err
		}
		s.log.Info("class mapping written", zap.String("path", s.cfg.ClassMappingPath))
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("datasplit: encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("datasplit: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec // dataset artifacts are world-readable
		return fmt.Errorf("datasplit: write %s: %w", path, err)
	}
	return nil
}
