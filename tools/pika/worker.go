package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/maxpert/recordstream/memory"
	"github.com/maxpert/recordstream/model"
	"github.com/puzpuzpuz/xsync/v3"
)

// Bench owns the in-process stream every worker drives.
type Bench struct {
	conf     *Config
	stream   *memory.Stream
	locators []model.Locator
	keyGen   *KeyGenerator
	out      io.Writer

	// inflight maps {locator}/{recordID} to the worker holding the claim
	inflight *xsync.MapOf[string, int]

	loadStats *Stats
	runStats  *Stats
}

// NewBench creates and initializes the benchmark stream.
func NewBench(ctx context.Context, conf *Config, out io.Writer) (*Bench, error) {
	opts, err := conf.StreamOptions()
	if err != nil {
		return nil, err
	}

	s, err := memory.New(conf.Stream, opts)
	if err != nil {
		return nil, err
	}
	if _, err := s.CreateStream(ctx, model.CreateStreamRequest{OnExisting: model.ExistingStreamThrow}); err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Bench{
		conf:      conf,
		stream:    s,
		locators:  opts.LocatorProtocol.AllLocators(),
		keyGen:    NewKeyGenerator("rec", conf.PutOverlap),
		out:       out,
		inflight:  xsync.NewMapOf[string, int](),
		loadStats: NewStats(),
		runStats:  NewStats(),
	}, nil
}

// Stream returns the stream under test.
func (b *Bench) Stream() *memory.Stream {
	return b.stream
}

// Worker executes operations against the stream.
type Worker struct {
	id         int
	bench      *Bench
	locator    model.Locator
	opSelector *OpSelector
	stats      *Stats
	rng        *rand.Rand
}

// NewWorker creates a worker that claims from one locator.
func (b *Bench) NewWorker(id int, opSelector *OpSelector, stats *Stats) *Worker {
	return &Worker{
		id:         id,
		bench:      b,
		locator:    b.locators[id%len(b.locators)],
		opSelector: opSelector,
		stats:      stats,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano() + int64(id))),
	}
}

// RunLoad executes count puts for the load phase.
func (w *Worker) RunLoad(ctx context.Context, count int, wg *sync.WaitGroup) {
	defer wg.Done()

	for i := 0; i < count; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.runOp(ctx, OpPut)
	}
}

// RunBenchmark executes the workload until opsChan is closed.
func (w *Worker) RunBenchmark(ctx context.Context, opsChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-opsChan:
			if !ok {
				return
			}
			w.runOp(ctx, w.opSelector.Select())
		}
	}
}

func (w *Worker) runOp(ctx context.Context, opType OpType) {
	start := time.Now()
	err := w.execute(ctx, opType)
	latency := time.Since(start)

	if err != nil {
		if ctxErr(err) {
			return
		}
		w.stats.RecordError(opType)
		return
	}
	w.stats.RecordOp(opType, latency)
}

// execute runs a single operation.
func (w *Worker) execute(ctx context.Context, opType OpType) error {
	switch opType {
	case OpPut:
		return w.put(ctx)
	case OpRead:
		return w.read(ctx)
	case OpHandle:
		return w.handle(ctx)
	case OpStatus:
		return w.status(ctx)
	default:
		return fmt.Errorf("unknown operation type: %v", opType)
	}
}

func (w *Worker) put(ctx context.Context) error {
	key, _ := w.bench.keyGen.NextPutKey(w.rng)

	req := model.PutRequest{
		Metadata: model.RecordMetadata{
			StringSerializedID: &key,
			Tags:               newTags(w.rng),
		},
		Payload: newPayload(w.rng),
	}
	if w.bench.conf.PutOverlap > 0 {
		req.ExistingRecordStrategy = model.DoNotWriteIfFoundByID
	}

	result, err := w.bench.stream.Put(ctx, req)
	if err != nil {
		return err
	}
	if result.NewInternalRecordID == nil {
		w.stats.RecordSkipped()
	} else {
		w.stats.RecordWritten()
	}
	return nil
}

func (w *Worker) read(ctx context.Context) error {
	key := w.bench.keyGen.RandomExistingKey(w.rng)
	// Not finding a record is not an error for benchmark purposes
	_, err := w.bench.stream.GetLatestRecord(ctx, model.RecordQuery{StringSerializedID: &key})
	return err
}

// handle claims one record and finishes it with Complete or Fail.
func (w *Worker) handle(ctx context.Context) error {
	concern := w.bench.conf.Concern
	details := "worker-" + strconv.Itoa(w.id)

	rec, err := w.bench.stream.TryHandle(ctx, model.TryHandleRequest{
		Concern: concern,
		Locator: w.locator,
		Details: details,
	})
	if err != nil {
		return err
	}
	if rec == nil {
		w.stats.RecordEmpty()
		return nil
	}
	w.stats.RecordClaimed()

	key := w.locator.Key() + "/" + strconv.FormatInt(rec.InternalRecordID, 10)
	if _, loaded := w.bench.inflight.LoadOrStore(key, w.id); loaded {
		w.stats.RecordDoubleClaim()
	} else {
		defer w.bench.inflight.Delete(key)
	}

	req := model.HandlingRequest{
		Locator:          w.locator,
		InternalRecordID: rec.InternalRecordID,
		Concern:          concern,
		Details:          details,
	}

	// A stopping run still finishes its claim so nothing is left Running
	finishCtx := context.WithoutCancel(ctx)
	if w.rng.Float64()*100 < w.bench.conf.FailPct {
		err = w.bench.stream.FailRunning(finishCtx, req)
		if err == nil {
			w.stats.RecordFailed()
		}
	} else {
		err = w.bench.stream.CompleteRunning(finishCtx, req)
		if err == nil {
			w.stats.RecordCompleted()
		}
	}

	if IsConflictError(err) {
		w.stats.RecordConflict()
		return nil
	}
	return err
}

func (w *Worker) status(ctx context.Context) error {
	req := model.CompositeStatusRequest{Concern: w.bench.conf.Concern}

	var err error
	if w.rng.Intn(2) == 0 {
		req.IDs = []string{w.bench.keyGen.RandomExistingKey(w.rng)}
		_, err = w.bench.stream.GetCompositeHandlingStatusByIDs(ctx, req)
	} else {
		req.Tags = newTags(w.rng)
		_, err = w.bench.stream.GetCompositeHandlingStatusByTags(ctx, req)
	}
	return err
}

// Load writes conf.Records records spread across the workers.
func (b *Bench) Load(ctx context.Context) (time.Duration, error) {
	threads := b.conf.Threads
	recordsPerWorker := b.conf.Records / threads
	remainder := b.conf.Records % threads

	var wg sync.WaitGroup
	start := time.Now()

	reporterCtx, stopReporter := context.WithCancel(ctx)
	defer stopReporter()
	go reportProgress(reporterCtx, b.out, b.loadStats)

	for i := 0; i < threads; i++ {
		count := recordsPerWorker
		if i == threads-1 {
			count += remainder
		}

		wg.Add(1)
		worker := b.NewWorker(i, nil, b.loadStats)
		go worker.RunLoad(ctx, count, &wg)
	}

	wg.Wait()
	return time.Since(start), ctx.Err()
}

// Run executes the configured workload.
func (b *Bench) Run(ctx context.Context) (time.Duration, error) {
	dist := b.conf.GetWorkloadDistribution()
	if err := dist.Validate(); err != nil {
		return 0, err
	}

	opsChan := make(chan struct{}, b.conf.Threads*10)

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < b.conf.Threads; i++ {
		wg.Add(1)
		opSelector := NewOpSelector(dist, time.Now().UnixNano()+int64(i))
		worker := b.NewWorker(i, opSelector, b.runStats)
		go worker.RunBenchmark(ctx, opsChan, &wg)
	}

	reporterCtx, stopReporter := context.WithCancel(ctx)
	defer stopReporter()
	go reportProgress(reporterCtx, b.out, b.runStats)

	if b.conf.Duration > 0 {
		deadline := time.After(b.conf.Duration)
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-deadline:
				break loop
			case opsChan <- struct{}{}:
			}
		}
	} else {
	opsLoop:
		for i := 0; i < b.conf.Operations; i++ {
			select {
			case <-ctx.Done():
				break opsLoop
			case opsChan <- struct{}{}:
			}
		}
	}

	close(opsChan)
	wg.Wait()
	return time.Since(start), nil
}

// executeLoad runs the load phase.
func executeLoad(ctx context.Context, conf *Config, out io.Writer) error {
	fmt.Fprintln(out, "╔══════════════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║            Pika Load Phase                           ║")
	fmt.Fprintln(out, "╚══════════════════════════════════════════════════════╝")
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Stream:      %s\n", conf.Stream)
	fmt.Fprintf(out, "Locators:    %d\n", conf.Locators)
	fmt.Fprintf(out, "Records:     %d\n", conf.Records)
	fmt.Fprintf(out, "Threads:     %d\n", conf.Threads)
	fmt.Fprintln(out)

	bench, err := NewBench(ctx, conf, out)
	if err != nil {
		return err
	}

	elapsed, err := bench.Load(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out, "                    LOAD COMPLETE                      ")
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	bench.loadStats.PrintFinal(out, elapsed)

	return nil
}

// executeRun preloads the stream and runs the benchmark phase.
func executeRun(ctx context.Context, conf *Config, out io.Writer) (*Bench, error) {
	fmt.Fprintln(out, "╔══════════════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║            Pika Benchmark Phase                      ║")
	fmt.Fprintln(out, "╚══════════════════════════════════════════════════════╝")
	fmt.Fprintln(out)

	dist := conf.GetWorkloadDistribution()
	if err := dist.Validate(); err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "Stream:      %s (%d locators)\n", conf.Stream, conf.Locators)
	fmt.Fprintf(out, "Concern:     %s\n", conf.Concern)
	fmt.Fprintf(out, "Eligibility: %s (reclaim running: %v)\n", conf.Eligibility, conf.ReclaimRunning)
	fmt.Fprintf(out, "Workload:    %s\n", conf.Workload)
	fmt.Fprintf(out, "Distribution: P:%d%% R:%d%% H:%d%% S:%d%%\n",
		dist.Put, dist.Read, dist.Handle, dist.Status)
	fmt.Fprintf(out, "Operations:  %d\n", conf.Operations)
	if conf.Duration > 0 {
		fmt.Fprintf(out, "Duration:    %s\n", conf.Duration)
	}
	fmt.Fprintf(out, "Threads:     %d\n", conf.Threads)
	fmt.Fprintf(out, "Fail:        %.1f%%\n", conf.FailPct)
	fmt.Fprintln(out)

	bench, err := NewBench(ctx, conf, out)
	if err != nil {
		return nil, err
	}

	if conf.Records > 0 {
		fmt.Fprintf(out, "Preloading %d records...\n", conf.Records)
		if _, err := bench.Load(ctx); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "Preloaded %d records\n\n", bench.loadStats.GetSnapshot().Written)
	}

	elapsed, err := bench.Run(ctx)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out, "                  BENCHMARK COMPLETE                   ")
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	bench.runStats.PrintFinal(out, elapsed)

	return bench, nil
}
