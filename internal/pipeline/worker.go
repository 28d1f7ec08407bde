package pipeline

import (
	"fmt"
	"log"
	"os"

	"github.com/paineta/nfdump/internal/block"
	"github.com/paineta/nfdump/internal/record"
)

// WorkerParam is the controller-owned, single-worker-shared parameter
// record (spec §3): written only by the controller while the worker is
// parked at the barrier, read only by the worker after release.
type WorkerParam struct {
	Self         int
	NumWorkers   int
	CurrentBlock *block.Block
}

// Worker is a long-lived transformer bound to one partition index (spec
// §4.4). It never allocates on the hot path and never writes outside its
// own partition of a block's payload.
type Worker struct {
	param      *WorkerParam
	barrier    *Barrier
	anonymizer record.Anonymizer
}

// NewWorker binds a worker to its parameter record, the shared barrier, and
// the process-wide anonymizer key schedule.
func NewWorker(param *WorkerParam, barrier *Barrier, anonymizer record.Anonymizer) *Worker {
	return &Worker{param: param, barrier: barrier, anonymizer: anonymizer}
}

// Run is the worker's lifecycle loop (spec §4.4). It is meant to be the
// body of a goroutine; it returns only once the controller has signaled
// shutdown by publishing a nil CurrentBlock.
func (w *Worker) Run() {
	// Park immediately after spawn, announcing readiness.
	w.barrier.WorkerWait()

	for {
		blk := w.param.CurrentBlock
		if blk == nil {
			return
		}

		if err := block.Partition(blk.Payload, blk.Header.NumRecords, w.param.Self, w.param.NumWorkers, w.dispatch); err != nil {
			// The cursor is only valid inside this goroutine; a corrupt
			// block leaves the shared output buffer inconsistent, so there
			// is no recovery path. Exit 255, same as every other setup/fatal
			// error (original_source/nfanon.c's corruption sites exit(255)).
			log.Printf("nfanon: worker %d: %v", w.param.Self, err)
			os.Exit(255)
		}

		w.barrier.WorkerWait()
	}
}

func (w *Worker) dispatch(recType uint16, rec []byte) error {
	switch recType {
	case record.TypeV3Record:
		if err := record.Walk(rec, w.anonymizer); err != nil {
			return fmt.Errorf("worker %d: %w", w.param.Self, err)
		}
	case record.TypeExporterInfo, record.TypeExporterStat, record.TypeSamplerRecord, record.TypeNbarRecord:
		// Silently skipped, per spec §3/§4.3.
	default:
		log.Printf("nfanon: worker %d: unknown record type %d, skipping", w.param.Self, recType)
	}
	return nil
}
