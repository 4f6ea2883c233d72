package reconcile

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Write prints the per-partition summary with full id lists, the operator's
// view of a run.
func (r *Report) Write(w io.Writer) error {
	mode := "dry run"
	if r.Applied {
		mode = "applied"
	}
	scope := "all branches"
	if r.Branch != "" {
		scope = "branch " + r.Branch
	}
	fmt.Fprintf(w, "reconcile %s, %s (%s)\n", r.Window, scope, mode)

	if len(r.Partitions) == 0 {
		fmt.Fprintln(w, "  nothing in window")
		return nil
	}

	for _, p := range r.Partitions {
		fmt.Fprintf(w, "\n[%s] source=%d destination=%d\n", p.Branch, p.Sourced, p.Stored)
		fmt.Fprintf(w, "  missing in destination: %d %s\n", len(p.Missing), idList(p.Missing))
		fmt.Fprintf(w, "  status mismatches:      %d\n", len(p.Mismatches))
		for _, mm := range p.Mismatches {
			fmt.Fprintf(w, "    %s: source=%q destination=%q\n", mm.ID, mm.SourceStatus, mm.DestStatus)
		}
		fmt.Fprintf(w, "  ghosts in destination:  %d %s\n", len(p.Ghosts), idList(p.Ghosts))
		fmt.Fprintf(w, "  duplicate groups:       %d\n", len(p.Duplicates))
		for _, g := range p.Duplicates {
			fmt.Fprintf(w, "    %s: %s (suspected original: %s)\n", g.Fingerprint, strings.Join(g.IDs, ", "), g.IDs[0])
		}
		if r.Applied {
			fmt.Fprintf(w, "  corrected: %d upserted, %d deleted, %d failed\n", p.Upserted, p.Deleted, p.WriteFails)
		}
	}
	return nil
}

func idList(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return "[" + strings.Join(ids, ", ") + "]"
}

// ExportXLSX writes the duplicate groups to a workbook for human review. One
// row per member; the earliest member of each group is marked as the suspected
// original. Non-duplicate findings stay in the printed summary.
func (r *Report) ExportXLSX(path string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("duplicates")
	if err != nil {
		return eris.Wrap(err, "reconcile: create export sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"branch", "fingerprint", "order_id", "suspected_original"} {
		header.AddCell().SetString(h)
	}

	for _, p := range r.Partitions {
		for _, g := range p.Duplicates {
			for i, id := range g.IDs {
				row := sheet.AddRow()
				row.AddCell().SetString(p.Branch)
				row.AddCell().SetString(g.Fingerprint)
				row.AddCell().SetString(id)
				if i == 0 {
					row.AddCell().SetString("yes")
				} else {
					row.AddCell().SetString("")
				}
			}
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "reconcile: save export to %s", path)
	}
	return nil
}
