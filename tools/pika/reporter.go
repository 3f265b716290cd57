package main

import (
	"context"
	"fmt"
	"io"
	"time"
)

// reportProgress prints real-time progress every second.
func reportProgress(ctx context.Context, w io.Writer, stats *Stats) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	var lastSnapshot Snapshot
	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := stats.GetSnapshot()
			elapsed := time.Since(startTime)

			currentTotal := snapshot.Total()
			opsSec := currentTotal - lastSnapshot.Total()
			claimsSec := snapshot.Claimed - lastSnapshot.Claimed

			cumThroughput := float64(currentTotal) / elapsed.Seconds()

			fmt.Fprintf(w, "[%5.0fs] ops/sec: %6d | claims/sec: %5d | total: %8d | completed: %7d | failed: %6d | errors: %4d | throughput: %.1f ops/sec\n",
				elapsed.Seconds(),
				opsSec,
				claimsSec,
				currentTotal,
				snapshot.Completed,
				snapshot.Failed,
				snapshot.Errors,
				cumThroughput,
			)

			lastSnapshot = snapshot
		}
	}
}
