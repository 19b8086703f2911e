package datasplit

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// ClassSummary holds the per-class counts of a split.
type ClassSummary struct {
	Class   string `json:"class"`
	Total   int    `json:"total"`
	Train   int    `json:"train"`
	Val     int    `json:"val"`
	Test    int    `json:"test"`
	Skipped int    `json:"skipped,omitempty"`
	Bytes   int64  `json:"bytes"`
}

// Summary describes a completed (or planned) split in sorted class order.
type Summary struct {
	RunID      string         `json:"run_id"`
	OutputRoot string         `json:"output_root,omitempty"`
	Classes    []ClassSummary `json:"classes"`
	Leaks      []Leak         `json:"leaks,omitempty"`
}

func newSummary(plan *Plan) Summary {
	s := Summary{
		RunID:   plan.RunID,
		Classes: make([]ClassSummary, len(plan.Classes)),
		Leaks:   plan.Leaks,
	}
	for i := range plan.Classes {
		cp := &plan.Classes[i]
		s.Classes[i] = ClassSummary{
			Class:   cp.Class,
			Total:   cp.Total(),
			Train:   len(cp.Files[PartitionTrain]),
			Val:     len(cp.Files[PartitionVal]),
			Test:    len(cp.Files[PartitionTest]),
			Skipped: len(cp.Skipped),
		}
	}
	return s
}

// Summarize returns the counts of a plan without materialising it.
func (p *Plan) Summarize() Summary {
	return newSummary(p)
}

// Totals sums every class; Class is "TOTAL".
func (s Summary) Totals() ClassSummary {
	t := ClassSummary{Class: "TOTAL"}
	for _, c := range s.Classes {
		t.Total += c.Total
		t.Train += c.Train
		t.Val += c.Val
		t.Test += c.Test
		t.Skipped += c.Skipped
		t.Bytes += c.Bytes
	}
	return t
}

// WriteTable prints the human-readable split summary.
func (s Summary) WriteTable(w io.Writer) error {
	width := len("TOTAL")
	for _, c := range s.Classes {
		width = max(width, len(c.Class))
	}

	var b strings.Builder
	b.WriteString("DATASET SPLIT SUMMARY\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	for _, c := range s.Classes {
		writeRow(&b, width, c)
	}
	b.WriteString(strings.Repeat("-", 40) + "\n")
	writeRow(&b, width, s.Totals())

	if len(s.Leaks) > 0 {
		fmt.Fprintf(&b, "\n%d near-duplicate pair(s) span partitions:\n", len(s.Leaks))
		for _, l := range s.Leaks {
			fmt.Fprintf(&b, "  %s: %s/%s ~ %s/%s (distance %d)\n",
				l.Class, l.A.Partition, l.A.Name, l.B.Partition, l.B.Name, l.Distance)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeRow(b *strings.Builder, width int, c ClassSummary) {
	fmt.Fprintf(b, "%-*s | Total: %4d | Train: %4d | Val: %4d | Test: %4d",
		width, c.Class, c.Total, c.Train, c.Val, c.Test)
	if c.Bytes > 0 {
		fmt.Fprintf(b, " | Size: %s", humanize.Bytes(uint64(c.Bytes)))
	}
	if c.Skipped > 0 {
		fmt.Fprintf(b, " | Skipped: %d", c.Skipped)
	}
	b.WriteByte('\n')
}
