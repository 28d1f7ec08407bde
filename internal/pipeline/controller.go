package pipeline

import (
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/paineta/nfdump/internal/archive"
	"github.com/paineta/nfdump/internal/block"
	"github.com/paineta/nfdump/internal/record"
)

// MaxWorkers hard-caps the worker pool regardless of core count (spec §4.6,
// §9 "hard-capped at 8 to avoid oversubscription on large hosts").
const MaxWorkers = 8

// WorkerCount applies the controller's worker-count policy: min(cores, 8),
// falling back to 1 if the runtime can't report a core count.
func WorkerCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// Hooks are optional callbacks the controller invokes around file and block
// boundaries. Every field may be nil; a nil hook is simply skipped. This is
// how the ambient telemetry/notify/audit/status components (SPEC_FULL §4.11-
// §4.14) observe a run without the core depending on any of them directly.
type Hooks struct {
	OnFileStart func(path string)
	OnFileDone  func(path string, blocks, records, anonymized uint64, dur time.Duration)
	OnBlock     func(path string, hdr block.Header)
}

// Controller streams blocks from each input file through a fixed worker
// pool and writes each mutated block to a parallel output file (spec §4.6).
type Controller struct {
	numWorkers int
	anonymizer record.Anonymizer
	hooks      Hooks

	barrier *Barrier
	params  []*WorkerParam
	wg      sync.WaitGroup
}

// New builds a controller with numWorkers long-lived worker goroutines,
// already spawned and parked at the barrier.
func New(numWorkers int, anonymizer record.Anonymizer, hooks Hooks) (*Controller, error) {
	if numWorkers < 1 || numWorkers > MaxWorkers {
		return nil, fmt.Errorf("pipeline: numWorkers %d out of range [1,%d]", numWorkers, MaxWorkers)
	}

	c := &Controller{
		numWorkers: numWorkers,
		anonymizer: anonymizer,
		hooks:      hooks,
		barrier:    NewBarrier(numWorkers),
		params:     make([]*WorkerParam, numWorkers),
	}

	c.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		param := &WorkerParam{Self: i, NumWorkers: numWorkers}
		c.params[i] = param
		w := NewWorker(param, c.barrier, anonymizer)
		go func() {
			defer c.wg.Done()
			w.Run()
		}()
	}
	return c, nil
}

// Run processes every input file in order. outOverride, if non-empty, is
// used verbatim as the output path for a single-file run (-w); otherwise
// each file is anonymized to "<input>-tmp" and renamed over the original on
// success (spec §4.6 step 1 and step 4a).
func (c *Controller) Run(inputs []string, outOverride string) error {
	// Wait for the initial post-spawn park before publishing any work.
	c.barrier.ControllerWait()

	for _, in := range inputs {
		if err := c.processFile(in, outOverride); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown publishes a nil block to every worker and waits for them to
// exit, then destroys the barrier. Callers must call Shutdown exactly once
// after the last Run call.
func (c *Controller) Shutdown() {
	for _, p := range c.params {
		p.CurrentBlock = nil
	}
	c.barrier.ControllerRelease()
	c.wg.Wait()
	c.barrier.Destroy()
}

func (c *Controller) processFile(inPath, outOverride string) error {
	start := time.Now()
	if c.hooks.OnFileStart != nil {
		c.hooks.OnFileStart(inPath)
	}

	in, err := archive.Open(inPath)
	if err != nil {
		return fmt.Errorf("pipeline: opening input %s: %w", inPath, err)
	}
	defer in.Close()

	outPath := outOverride
	inPlace := outOverride == ""
	if inPlace {
		outPath = inPath + "-tmp"
	}

	out, err := archive.Create(outPath, in.Identity, in.Stats, in.Compression)
	if err != nil {
		return fmt.Errorf("pipeline: opening output %s: %w", outPath, err)
	}

	var blocks, records, anonymized uint64
	var reuse *block.Block
	for {
		blk, err := in.ReadBlock(reuse)
		if err != nil {
			out.Dispose()
			return fmt.Errorf("pipeline: reading block from %s: %w", inPath, err)
		}
		if blk == nil {
			break
		}
		blocks++
		records += uint64(blk.Header.NumRecords)

		if c.hooks.OnBlock != nil {
			c.hooks.OnBlock(inPath, blk.Header)
		}

		if !blk.Header.HoldsRecords() {
			log.Printf("nfanon: %s: block type %d does not carry records, writing through unchanged", filepath.Base(inPath), blk.Header.Type)
			if _, err := out.WriteBlock(blk); err != nil {
				out.Dispose()
				return fmt.Errorf("pipeline: writing pass-through block: %w", err)
			}
			reuse = blk
			continue
		}

		for _, p := range c.params {
			p.CurrentBlock = blk
		}
		c.barrier.ControllerRelease()
		c.barrier.ControllerWait()

		anonymized += uint64(blk.Header.NumRecords)
		if _, err := out.WriteBlock(blk); err != nil {
			out.Dispose()
			return fmt.Errorf("pipeline: writing anonymized block: %w", err)
		}
		reuse = blk
	}

	if err := out.Finalize(); err != nil {
		return fmt.Errorf("pipeline: finalizing output %s: %w", outPath, err)
	}

	if inPlace {
		if err := archive.Rename(outPath, inPath); err != nil {
			return fmt.Errorf("pipeline: renaming %s to %s: %w", outPath, inPath, err)
		}
	}

	if c.hooks.OnFileDone != nil {
		c.hooks.OnFileDone(inPath, blocks, records, anonymized, time.Since(start))
	}
	return nil
}
