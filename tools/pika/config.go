package main

import (
	"fmt"
	"time"

	"github.com/maxpert/recordstream/cfg"
	"github.com/maxpert/recordstream/memory"
	"github.com/maxpert/recordstream/model"
)

type Config struct {
	// Stream
	Stream         string
	Locators       int
	Eligibility    string
	Composite      string
	ReclaimRunning bool
	Concern        string

	// Load options
	Records int

	// Run options
	Workload   string
	Operations int
	Duration   time.Duration
	Threads    int

	// Workload percentages (-1 means use workload default)
	PutPct    int
	ReadPct   int
	HandlePct int
	StatusPct int

	// FailPct is the % of claimed records finished with FailRunning
	FailPct float64

	// PutOverlap is the % of puts that reuse an existing id
	PutOverlap float64

	// Verify checks the handling ledger after the run
	Verify bool
}

func (c *Config) Validate() error {
	if c.Stream == "" {
		return fmt.Errorf("stream cannot be empty")
	}

	if c.Locators < 1 {
		return fmt.Errorf("locators must be at least 1")
	}

	if err := model.ValidateConcern(c.Concern); err != nil {
		return err
	}

	if c.Records < 0 {
		return fmt.Errorf("records must be non-negative")
	}

	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1")
	}

	if c.Operations < 0 {
		return fmt.Errorf("operations must be non-negative")
	}

	if c.FailPct < 0 || c.FailPct > 100 {
		return fmt.Errorf("fail-pct must be between 0 and 100")
	}

	if c.PutOverlap < 0 || c.PutOverlap > 100 {
		return fmt.Errorf("put-overlap must be between 0 and 100")
	}

	switch c.Workload {
	case "mixed", "write-only", "read-only", "handle-heavy":
		// valid
	case "":
		c.Workload = "mixed"
	default:
		return fmt.Errorf("invalid workload: %s (must be mixed|write-only|read-only|handle-heavy)", c.Workload)
	}

	return nil
}

// StreamOptions builds memory stream options the same way the server does
// from its [stream] section.
func (c *Config) StreamOptions() (memory.Options, error) {
	return memory.OptionsFromConfig(cfg.StreamConfiguration{
		Locators:          c.Locators,
		LocatorPrefix:     "bench",
		ReclaimRunning:    c.ReclaimRunning,
		EligibilityPolicy: c.Eligibility,
		CompositePolicy:   c.Composite,
	})
}

func (c *Config) GetWorkloadDistribution() WorkloadDistribution {
	var dist WorkloadDistribution

	switch c.Workload {
	case "mixed":
		dist = WorkloadDistribution{Put: 35, Read: 25, Handle: 30, Status: 10}
	case "write-only":
		dist = WorkloadDistribution{Put: 100}
	case "read-only":
		dist = WorkloadDistribution{Read: 80, Status: 20}
	case "handle-heavy":
		dist = WorkloadDistribution{Put: 20, Read: 10, Handle: 60, Status: 10}
	}

	if c.PutPct >= 0 {
		dist.Put = c.PutPct
	}
	if c.ReadPct >= 0 {
		dist.Read = c.ReadPct
	}
	if c.HandlePct >= 0 {
		dist.Handle = c.HandlePct
	}
	if c.StatusPct >= 0 {
		dist.Status = c.StatusPct
	}

	return dist
}

type WorkloadDistribution struct {
	Put    int
	Read   int
	Handle int
	Status int
}

func (w WorkloadDistribution) Total() int {
	return w.Put + w.Read + w.Handle + w.Status
}

func (w WorkloadDistribution) Validate() error {
	total := w.Total()
	if total != 100 {
		return fmt.Errorf("workload percentages must sum to 100, got %d", total)
	}
	return nil
}
