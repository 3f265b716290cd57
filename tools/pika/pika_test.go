package main

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/maxpert/recordstream/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		Stream:      "bench",
		Locators:    2,
		Eligibility: "default",
		Composite:   "unresolved-first",
		Concern:     "bench",
		Records:     200,
		Workload:    "handle-heavy",
		Operations:  2000,
		Threads:     4,
		PutPct:      -1,
		ReadPct:     -1,
		HandlePct:   -1,
		StatusPct:   -1,
		FailPct:     20,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty stream", func(c *Config) { c.Stream = "" }, "stream"},
		{"no locators", func(c *Config) { c.Locators = 0 }, "locators"},
		{"reserved concern", func(c *Config) { c.Concern = model.BlockingConcern }, "reserved"},
		{"no threads", func(c *Config) { c.Threads = 0 }, "threads"},
		{"negative records", func(c *Config) { c.Records = -1 }, "records"},
		{"fail pct", func(c *Config) { c.FailPct = 101 }, "fail-pct"},
		{"put overlap", func(c *Config) { c.PutOverlap = -5 }, "put-overlap"},
		{"bad workload", func(c *Config) { c.Workload = "read-mostly" }, "invalid workload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}

	c := testConfig()
	c.Workload = ""
	require.NoError(t, c.Validate())
	assert.Equal(t, "mixed", c.Workload)
}

func TestWorkloadDistribution(t *testing.T) {
	for _, workload := range []string{"mixed", "write-only", "read-only", "handle-heavy"} {
		c := testConfig()
		c.Workload = workload
		assert.NoError(t, c.GetWorkloadDistribution().Validate(), workload)
	}

	c := testConfig()
	c.Workload = "write-only"
	c.PutPct = 50
	dist := c.GetWorkloadDistribution()
	assert.Equal(t, 50, dist.Put)
	assert.Error(t, dist.Validate())
}

func TestOpSelector(t *testing.T) {
	s := NewOpSelector(WorkloadDistribution{Handle: 100}, 1)
	for i := 0; i < 100; i++ {
		require.Equal(t, OpHandle, s.Select())
	}

	s = NewOpSelector(WorkloadDistribution{Put: 50, Status: 50}, 1)
	seen := make(map[OpType]bool)
	for i := 0; i < 1000; i++ {
		seen[s.Select()] = true
	}
	assert.Equal(t, map[OpType]bool{OpPut: true, OpStatus: true}, seen)
}

func TestKeyGenerator(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	g := NewKeyGenerator("rec", 0)
	k1, overlap := g.NextPutKey(rng)
	assert.Equal(t, "rec_000000000001", k1)
	assert.False(t, overlap)
	k2, _ := g.NextPutKey(rng)
	assert.Equal(t, "rec_000000000002", k2)
	assert.Equal(t, uint64(2), g.Issued())

	existing := g.RandomExistingKey(rng)
	assert.Contains(t, []string{k1, k2}, existing)

	g = NewKeyGenerator("rec", 100)
	first, overlap := g.NextPutKey(rng)
	assert.False(t, overlap, "nothing to overlap with yet")
	again, overlap := g.NextPutKey(rng)
	assert.True(t, overlap)
	assert.Equal(t, first, again)
}

func TestStatsSnapshot(t *testing.T) {
	s := NewStats()
	s.RecordOp(OpPut, time.Millisecond)
	s.RecordOp(OpHandle, 3*time.Millisecond)
	s.RecordError(OpRead)
	s.RecordCompleted()

	snap := s.GetSnapshot()
	assert.Equal(t, uint64(2), snap.Total())
	assert.Equal(t, uint64(1), snap.Errors)
	assert.Equal(t, uint64(1), snap.Completed)

	min, max, avg := s.GetLatencyStats()
	assert.Equal(t, int64(1000), min)
	assert.Equal(t, int64(3000), max)
	assert.Equal(t, int64(2000), avg)

	var out bytes.Buffer
	s.PrintFinal(&out, time.Second)
	assert.Contains(t, out.String(), "HANDLE:")
	assert.Contains(t, out.String(), "READ errors: 1")
}

func TestBenchRunAndVerify(t *testing.T) {
	ctx := context.Background()
	conf := testConfig()
	require.NoError(t, conf.Validate())

	bench, err := NewBench(ctx, conf, io.Discard)
	require.NoError(t, err)

	_, err = bench.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), bench.loadStats.GetSnapshot().Written)

	_, err = bench.Run(ctx)
	require.NoError(t, err)

	run := bench.runStats.GetSnapshot()
	assert.Equal(t, uint64(2000), run.Total()+run.Errors)
	assert.Zero(t, run.Errors)
	assert.Positive(t, run.Claimed)

	result, err := bench.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, result.OK(), "problems: %v", result.Problems)
	assert.Equal(t, int(200+run.Written), result.Records)
	assert.Equal(t, int(run.Completed), result.Statuses[model.HandlingStatusCompleted])
	assert.Zero(t, result.Statuses[model.HandlingStatusRunning])
}

func TestBenchStrictEligibilityNeverReclaimsFailed(t *testing.T) {
	ctx := context.Background()
	conf := testConfig()
	conf.Eligibility = "strict"
	conf.Locators = 1
	conf.Records = 50
	conf.Operations = 80
	conf.FailPct = 100
	conf.PutPct, conf.ReadPct, conf.HandlePct, conf.StatusPct = 0, 0, 100, 0

	bench, err := NewBench(ctx, conf, io.Discard)
	require.NoError(t, err)
	_, err = bench.Load(ctx)
	require.NoError(t, err)
	_, err = bench.Run(ctx)
	require.NoError(t, err)

	run := bench.runStats.GetSnapshot()
	assert.Equal(t, uint64(50), run.Claimed)
	assert.Equal(t, uint64(50), run.Failed)
	assert.Equal(t, uint64(30), run.Empty)

	result, err := bench.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, result.OK(), "problems: %v", result.Problems)
	assert.Equal(t, 50, result.Statuses[model.HandlingStatusFailed])
}

func TestBenchPutOverlapSkipsExistingIDs(t *testing.T) {
	ctx := context.Background()
	conf := testConfig()
	conf.Records = 0
	conf.Workload = "write-only"
	conf.Operations = 500
	conf.PutOverlap = 50

	bench, err := NewBench(ctx, conf, io.Discard)
	require.NoError(t, err)
	_, err = bench.Run(ctx)
	require.NoError(t, err)

	run := bench.runStats.GetSnapshot()
	assert.Equal(t, uint64(500), run.Written+run.Skipped)
	assert.Positive(t, run.Skipped)

	result, err := bench.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, result.OK(), "problems: %v", result.Problems)
	assert.Equal(t, int(run.Written), result.DistinctIDs)
}

func TestNewBenchRejectsUnknownPolicy(t *testing.T) {
	conf := testConfig()
	conf.Composite = "majority-wins"

	_, err := NewBench(context.Background(), conf, io.Discard)
	assert.Error(t, err)
}
