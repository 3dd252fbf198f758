package monitor

import (
	"context"
	"fmt"
	"os"

	"github.com/patrolhq/patrol/internal/dispatch"
	"github.com/patrolhq/patrol/internal/sampler"
	"github.com/patrolhq/patrol/internal/store"
	"github.com/patrolhq/patrol/internal/types"
)

// ExceptionHandler contains sampler crashes. A crashed sampler yields an
// exception record on disk and a diagnostic-only dispatch; it never
// produces findings or a remediation request, and it never aborts the
// cycle.
type ExceptionHandler struct {
	store      *store.Store
	dispatcher dispatch.Dispatcher
	events     *store.EventIndex // nil when the index is unavailable
	snapshot   func() types.SystemSnapshot
}

func NewExceptionHandler(st *store.Store, d dispatch.Dispatcher, events *store.EventIndex, snapshot func() types.SystemSnapshot) *ExceptionHandler {
	return &ExceptionHandler{store: st, dispatcher: d, events: events, snapshot: snapshot}
}

// Run invokes the sampler with crash containment. On success it returns
// the findings record and true. On panic or error it records the
// exception, requests a diagnosis, and returns nil and false; the
// sampler contributes zero issues for the cycle.
func (h *ExceptionHandler) Run(ctx context.Context, s sampler.Sampler, cycle int) (*types.FindingsRecord, bool) {
	rec, err := h.contain(ctx, s)
	if err == nil {
		return rec, true
	}
	h.handle(ctx, s.Name(), cycle, err)
	return nil, false
}

func (h *ExceptionHandler) contain(ctx context.Context, s sampler.Sampler) (rec *types.FindingsRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s sampler: %v", s.Name(), r)
		}
	}()
	return s.Sample(ctx)
}

func (h *ExceptionHandler) handle(ctx context.Context, samplerName string, cycle int, cause error) {
	fmt.Fprintf(os.Stderr, "Warning: %s sampler failed: %v\n", samplerName, cause)

	rec := types.NewExceptionRecord(
		fmt.Sprintf("%s sampler crash", samplerName),
		fmt.Sprintf("%s sampling pass", samplerName),
		cause.Error(),
		h.snapshot(),
	)

	path, err := h.store.SaveException(rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to persist exception record: %v\n", err)
		return
	}

	if h.events != nil {
		event := store.NewEvent(store.EventExceptionRecorded, cycle, store.EventError,
			fmt.Sprintf("%s sampler crashed", samplerName),
			map[string]interface{}{"exception_id": rec.ID})
		if err := h.events.RecordEvent(ctx, event); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: event index write failed: %v\n", err)
		}
	}

	task, err := dispatch.DiagnosticTask(rec, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to build diagnostic task: %v\n", err)
		return
	}

	// A failed diagnostic dispatch is logged and abandoned. Escalating
	// the escalation would recurse.
	if _, err := h.dispatcher.Dispatch(ctx, dispatch.Request{
		Kind:          types.DispatchDiagnostic,
		Context:       rec.Context,
		ReferenceFile: path,
		Task:          task,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: diagnostic dispatch for %s failed: %v\n", samplerName, err)
	}
}
