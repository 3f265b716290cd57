package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/maxpert/recordstream/model"
)

// VerifyResult holds the outcome of a ledger verification.
type VerifyResult struct {
	Records     int
	DistinctIDs int
	Statuses    map[model.HandlingStatus]int
	Problems    []string
}

// OK reports whether every check passed.
func (r *VerifyResult) OK() bool {
	return len(r.Problems) == 0
}

func (r *VerifyResult) problem(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// Verify walks every partition and checks the stream against what the
// workers reported. It must run after all workers have stopped.
func (b *Bench) Verify(ctx context.Context) (*VerifyResult, error) {
	result := &VerifyResult{Statuses: make(map[model.HandlingStatus]int)}
	concern := b.conf.Concern

	for _, loc := range b.locators {
		records, err := b.stream.GetAllRecords(ctx, model.RecordQuery{Locator: loc})
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", loc.Key(), err)
		}
		result.Records += len(records)

		for _, rec := range records {
			status, err := b.stream.GetHandlingStatus(ctx, loc, rec.InternalRecordID, concern)
			if err != nil {
				return nil, fmt.Errorf("failed to read status of %s/%d: %w", loc.Key(), rec.InternalRecordID, err)
			}
			result.Statuses[status]++
		}

		ids, err := b.stream.GetDistinctStringSerializedIDs(ctx, model.RecordQuery{Locator: loc})
		if err != nil {
			return nil, fmt.Errorf("failed to read ids of %s: %w", loc.Key(), err)
		}
		result.DistinctIDs += len(ids)
	}

	partitions, err := b.stream.Stats(ctx)
	if err != nil {
		return nil, err
	}
	statRecords := 0
	for _, p := range partitions {
		statRecords += p.Records
		if p.Blocked {
			result.problem("partition %s is blocked", p.Locator)
		}
	}

	load := b.loadStats.GetSnapshot()
	run := b.runStats.GetSnapshot()
	written := int(load.Written + run.Written)

	if result.Records != written {
		result.problem("stream holds %d records, workers wrote %d", result.Records, written)
	}
	if statRecords != result.Records {
		result.problem("partition stats report %d records, scan found %d", statRecords, result.Records)
	}
	if result.DistinctIDs != result.Records {
		result.problem("%d distinct ids across %d records", result.DistinctIDs, result.Records)
	}
	if got := result.Statuses[model.HandlingStatusCompleted]; got != int(run.Completed) {
		result.problem("%d records Completed, workers completed %d", got, run.Completed)
	}
	if got := result.Statuses[model.HandlingStatusFailed]; got > int(run.Failed) {
		result.problem("%d records Failed, workers failed only %d", got, run.Failed)
	}

	// Reclaiming Running records makes overlapping claims legal
	if !b.conf.ReclaimRunning {
		if got := result.Statuses[model.HandlingStatusRunning]; got > 0 {
			result.problem("%d records left Running", got)
		}
		if run.DoubleClaims > 0 {
			result.problem("%d records claimed while already claimed", run.DoubleClaims)
		}
		if run.Conflicts > 0 {
			result.problem("%d handling conflicts without reclaim", run.Conflicts)
		}
	}

	return result, nil
}

// printVerify prints a verification report.
func printVerify(w io.Writer, r *VerifyResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(w, "                    VERIFICATION                       ")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintf(w, "Records:      %d\n", r.Records)
	fmt.Fprintf(w, "Distinct ids: %d\n", r.DistinctIDs)

	statuses := make([]model.HandlingStatus, 0, len(r.Statuses))
	for s := range r.Statuses {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })

	fmt.Fprintln(w, "Statuses:")
	for _, s := range statuses {
		fmt.Fprintf(w, "  %-20s %d\n", s.String()+":", r.Statuses[s])
	}

	if r.OK() {
		fmt.Fprintln(w, "\n✓ Stream is consistent")
		return
	}

	fmt.Fprintf(w, "\n✗ %d problems found:\n", len(r.Problems))
	for _, p := range r.Problems {
		fmt.Fprintf(w, "  - %s\n", p)
	}
}
