package datasplit

import (
	"cmp"
	"context"
	"path/filepath"
	"slices"

	"github.com/corona10/goimagehash"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FileRef points at one planned image of a class.
type FileRef struct {
	Partition Partition `json:"partition"`
	Name      string    `json:"name"`
}

// Leak is a pair of perceptually near-identical images of one class that
// were assigned to different partitions.
type Leak struct {
	Class    string  `json:"class"`
	A        FileRef `json:"a"`
	B        FileRef `json:"b"`
	Distance int     `json:"distance"`
}

// hashedImage is a dHash of a planned image; hash is nil when the image
// could not be decoded.
type hashedImage struct {
	ref  FileRef
	hash *goimagehash.ImageHash
}

// auditLeaks hashes every planned image and reports cross-partition pairs
// whose dHash distance is below cfg.LeakThreshold. The assignment itself is
// never changed. Undecodable images are skipped.
func (s *Splitter) auditLeaks(ctx context.Context, plan *Plan) ([]Leak, error) {
	var leaks []Leak
	for i := range plan.Classes {
		hashes, err := s.hashClass(ctx, &plan.Classes[i])
		if err != nil {
			return nil, err
		}
		leaks = append(leaks, findLeaks(plan.Classes[i].Class, hashes, s.cfg.LeakThreshold)...)
	}

	for _, l := range leaks {
		s.log.Warn("near-duplicate images span partitions",
			zap.String("class", l.Class),
			zap.String("a", l.A.Partition.String()+"/"+l.A.Name),
			zap.String("b", l.B.Partition.String()+"/"+l.B.Name),
			zap.Int("distance", l.Distance),
		)
	}
	return leaks, nil
}

func (s *Splitter) hashClass(ctx context.Context, cp *ClassPlan) ([]hashedImage, error) {
	var refs []FileRef
	for _, p := range Partitions {
		for _, name := range cp.Files[p] {
			refs = append(refs, FileRef{Partition: p, Name: name})
		}
	}

	// Each goroutine owns one slot, so no locking is needed.
	out := make([]hashedImage, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, ref := range refs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = hashedImage{ref: ref, hash: s.hashImage(filepath.Join(cp.Dir, ref.Name))}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// hashImage returns nil if the image cannot be decoded or hashed.
func (s *Splitter) hashImage(path string) *goimagehash.ImageHash {
	img, err := decodeImage(path)
	if err != nil {
		s.log.Debug("leak audit: cannot decode", zap.String("path", path), zap.Error(err))
		return nil
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		s.log.Debug("leak audit: cannot hash", zap.String("path", path), zap.Error(err))
		return nil
	}
	return hash
}

// findLeaks compares every pair from different partitions. Results are
// ordered by partition then name of A, then B.
func findLeaks(class string, hashes []hashedImage, threshold int) []Leak {
	var leaks []Leak
	for i := range hashes {
		if hashes[i].hash == nil {
			continue
		}
		for j := i + 1; j < len(hashes); j++ {
			if hashes[j].hash == nil || hashes[i].ref.Partition == hashes[j].ref.Partition {
				continue
			}
			dist, err := hashes[i].hash.Distance(hashes[j].hash)
			if err != nil || dist >= threshold {
				continue
			}
			a, b := hashes[i].ref, hashes[j].ref
			if compareRefs(b, a) < 0 {
				a, b = b, a
			}
			leaks = append(leaks, Leak{Class: class, A: a, B: b, Distance: dist})
		}
	}
	slices.SortFunc(leaks, func(x, y Leak) int {
		if c := compareRefs(x.A, y.A); c != 0 {
			return c
		}
		return compareRefs(x.B, y.B)
	})
	return leaks
}

func compareRefs(a, b FileRef) int {
	if c := cmp.Compare(a.Partition, b.Partition); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}
