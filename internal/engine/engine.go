// Package engine orchestrates one form revision turn: prompt assembly,
// backend call, extraction, validation and the defensive field-identity
// diff. Revision is all-or-nothing; on any failure the caller's form is
// returned to them unchanged.
package engine

import (
	"context"
	"errors"
	"io"

	"github.com/kayz/formforge/internal/extract"
	"github.com/kayz/formforge/internal/form"
	"github.com/kayz/formforge/internal/history"
	"github.com/kayz/formforge/internal/logger"
	"github.com/kayz/formforge/internal/prompt"
	"github.com/kayz/formforge/internal/provider"
)

// Engine runs revisions against a single chat backend.
type Engine struct {
	backend provider.Backend
	store   *history.Store // optional revision audit log
}

// New creates an engine. store may be nil to disable the audit log.
func New(backend provider.Backend, store *history.Store) *Engine {
	return &Engine{backend: backend, store: store}
}

// Backend returns the backend the engine dispatches to.
func (e *Engine) Backend() provider.Backend {
	return e.backend
}

// Revise applies one natural-language instruction to the current form and
// returns the validated replacement. current is never mutated; failures
// return a *RevisionError tagged with the failing stage.
func (e *Engine) Revise(ctx context.Context, instruction string, current form.Form) (form.Revision, error) {
	rev, err := e.revise(ctx, instruction, current, nil)
	e.record("", instruction, current, rev, err)
	return rev, err
}

// ReviseSession is Revise with a session id attached to audit log entries
// and an optional fragment observer. onFragment, when non-nil, sees every
// raw text fragment as it arrives, before extraction; callers use it to
// relay live model output.
func (e *Engine) ReviseSession(ctx context.Context, sessionID, instruction string, current form.Form, onFragment func(string)) (form.Revision, error) {
	rev, err := e.revise(ctx, instruction, current, onFragment)
	e.record(sessionID, instruction, current, rev, err)
	return rev, err
}

// teeStream forwards fragments to an observer while passing them through.
type teeStream struct {
	inner extract.Stream
	fn    func(string)
}

func (t *teeStream) Recv() (string, error) {
	fragment, err := t.inner.Recv()
	if err == nil && fragment != "" {
		t.fn(fragment)
	}
	return fragment, err
}

func (e *Engine) revise(ctx context.Context, instruction string, current form.Form, onFragment func(string)) (form.Revision, error) {
	messages := prompt.BuildMessages(instruction, current)

	// The stream is abandoned as soon as the JSON object closes; cancelling
	// the derived context releases the backend transport.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := e.backend.Complete(ctx, messages)
	if err != nil {
		return form.Revision{}, stageErr(StageTransport, err)
	}
	if closer, ok := stream.(io.Closer); ok {
		defer closer.Close()
	}
	if onFragment != nil {
		stream = &teeStream{inner: stream, fn: onFragment}
	}

	raw, err := extract.Object(ctx, stream)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrMalformed):
			return form.Revision{}, stageErr(StageExtract, err)
		default:
			// Recv errors and cancellation surface as transport failures.
			return form.Revision{}, stageErr(StageTransport, err)
		}
	}

	if ok, reason := form.Validate(raw); !ok {
		return form.Revision{}, stageErr(StageValidate, errors.New(reason))
	}

	rev, err := form.DecodeRevision(raw)
	if err != nil {
		return form.Revision{}, stageErr(StageValidate, err)
	}

	e.observeDiff(current, rev.Form)
	return rev, nil
}

// observeDiff flags field drops and additions. Drops are not restored: a
// disputed field is a legitimate removal, so the diff is observability only.
func (e *Engine) observeDiff(prev, next form.Form) {
	added, removed := form.DiffNames(prev, next)
	if len(removed) > 0 {
		logger.Warn("[ENGINE] revision dropped fields: %v", removed)
	}
	if len(added) > 0 {
		logger.Debug("[ENGINE] revision added fields: %v", added)
	}
}

// record writes the revision outcome to the audit log, best-effort.
func (e *Engine) record(sessionID, instruction string, prev form.Form, rev form.Revision, err error) {
	if e.store == nil {
		return
	}

	entry := history.Entry{
		SessionID:   sessionID,
		Instruction: instruction,
		Status:      "ok",
		Message:     rev.Message,
	}
	if err != nil {
		entry.Message = err.Error()
		entry.Status = "error"
		var revErr *RevisionError
		if errors.As(err, &revErr) {
			entry.Status = string(revErr.Stage) + "_error"
		}
	} else {
		entry.Added, entry.Removed = form.DiffNames(prev, rev.Form)
	}

	if err := e.store.Record(entry); err != nil {
		logger.Warn("[ENGINE] failed to record revision: %v", err)
	}
}
