package usecase

import (
	"context"
	"log"

	"github.com/codmatch/backend/internal/domain"
)

// runLog wraps an optional RunRecorder. Ledger failures are logged and
// never abort a pipeline.
type runLog struct {
	recorder domain.RunRecorder
	id       int64
}

func startRun(ctx context.Context, recorder domain.RunRecorder, pipeline, input string) *runLog {
	r := &runLog{recorder: recorder}
	if recorder == nil {
		return r
	}
	id, err := recorder.StartRun(ctx, pipeline, input)
	if err != nil {
		log.Printf("[LEDGER] Failed to start %s run: %v", pipeline, err)
		r.recorder = nil
		return r
	}
	r.id = id
	return r
}

func (r *runLog) match(ctx context.Context, m domain.MatchResult) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordMatch(ctx, r.id, m); err != nil {
		log.Printf("[LEDGER] Failed to record match for run %d: %v", r.id, err)
	}
}

func (r *runLog) finish(ctx context.Context, summary domain.RunSummary, runErr error) {
	if r.recorder == nil {
		return
	}
	if runErr != nil {
		summary.Status = "failed"
	}
	if err := r.recorder.FinishRun(ctx, r.id, summary); err != nil {
		log.Printf("[LEDGER] Failed to finish run %d: %v", r.id, err)
	}
}
