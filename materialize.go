package datasplit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const dirPerm = 0o755

// copyJob is one file of the plan on its way to the output tree.
type copyJob struct {
	class     int
	partition Partition
	src, dst  string
}

// Materialize writes the plan to the output root. The tree is built in a
// sibling staging directory and renamed into place only when every copy
// succeeded, so a failed run never leaves a half-populated output behind
// and never touches an existing one.
func (s *Splitter) Materialize(ctx context.Context, plan *Plan) (Summary, error) {
	if plan == nil || len(plan.Classes) == 0 {
		return Summary{}, &ConfigurationError{Field: "plan", Reason: "nothing to materialize"}
	}
	// The guard is re-checked: time may have passed since Plan.
	if err := s.checkOutput(); err != nil {
		return Summary{}, err
	}

	out := filepath.Clean(s.cfg.OutputRoot)
	parent := filepath.Dir(out)
	if err := os.MkdirAll(parent, dirPerm); err != nil {
		return Summary{}, fmt.Errorf("datasplit: create %s: %w", parent, err)
	}

	staging := filepath.Join(parent, "."+filepath.Base(out)+".partial-"+plan.RunID)
	log := s.log.With(zap.String("run_id", plan.RunID))
	log.Info("splitting dataset", zap.String("output", out), zap.String("staging", staging))

	summary, err := s.build(ctx, plan, staging)
	if err != nil {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			log.Warn("failed to remove staging directory", zap.String("path", staging), zap.Error(rmErr))
		}
		return Summary{}, err
	}

	if removed, err := s.swapIn(staging, out); err != nil {
		if removed {
			// The old output is gone; the staging tree is the only copy left.
			log.Error("output replaced but not renamed into place; staging directory kept",
				zap.String("staging", staging), zap.String("output", out), zap.Error(err))
			return Summary{}, fmt.Errorf("%w (new split kept in %s)", err, staging)
		}
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			log.Warn("failed to remove staging directory", zap.String("path", staging), zap.Error(rmErr))
		}
		return Summary{}, err
	}

	summary.OutputRoot = out
	log.Info("dataset split completed", zap.Int("classes", len(summary.Classes)), zap.Int("images", summary.Totals().Total))

	if err := s.writeArtifacts(plan, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// build creates the partition/class directories under root and copies every
// planned file with a bounded worker pool.
func (s *Splitter) build(ctx context.Context, plan *Plan, root string) (Summary, error) {
	for _, p := range Partitions {
		for i := range plan.Classes {
			dir := filepath.Join(root, p.String(), plan.Classes[i].Class)
			if err := os.MkdirAll(dir, dirPerm); err != nil {
				return Summary{}, fmt.Errorf("datasplit: create %s: %w", dir, err)
			}
		}
	}

	summary := newSummary(plan)

	var jobs []copyJob
	for ci := range plan.Classes {
		cp := &plan.Classes[ci]
		for _, p := range Partitions {
			for _, name := range cp.Files[p] {
				jobs = append(jobs, copyJob{
					class:     ci,
					partition: p,
					src:       filepath.Join(cp.Dir, name),
					dst:       filepath.Join(root, p.String(), cp.Class, name),
				})
			}
		}
	}

	written := make([]int64, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := copyFile(job.src, job.dst)
			if err != nil {
				return &CopyError{Src: job.src, Dst: job.dst, Err: err}
			}
			written[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	for i, job := range jobs {
		summary.Classes[job.class].Bytes += written[i]
	}
	return summary, nil
}

// swapIn moves the finished staging tree onto out, removing an existing
// output first when the policy allows it. removed reports whether an
// existing output was deleted.
func (s *Splitter) swapIn(staging, out string) (removed bool, err error) {
	if _, err := os.Lstat(out); err == nil {
		if s.cfg.Overwrite != OverwriteReplace {
			return false, &OutputExistsError{Path: out}
		}
		s.log.Info("removing existing output", zap.String("path", out))
		if err := os.RemoveAll(out); err != nil {
			// Part of the old output may already be gone.
			return true, fmt.Errorf("datasplit: remove %s: %w", out, err)
		}
		removed = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("datasplit: stat %s: %w", out, err)
	}

	if err := s.rename(staging, out); err != nil {
		return removed, fmt.Errorf("datasplit: rename %s -> %s: %w", staging, out, err)
	}
	return removed, nil
}
