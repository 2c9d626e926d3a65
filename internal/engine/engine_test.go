package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kayz/formforge/internal/extract"
	"github.com/kayz/formforge/internal/form"
	"github.com/kayz/formforge/internal/prompt"
)

// scriptedBackend replays a canned response body, split into small fragments
// the way a real transport would deliver it.
type scriptedBackend struct {
	body     string
	err      error
	lastMsgs []prompt.Message
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Complete(_ context.Context, messages []prompt.Message) (extract.Stream, error) {
	b.lastMsgs = messages
	if b.err != nil {
		return nil, b.err
	}
	var fragments []string
	for body := b.body; body != ""; {
		n := 7
		if n > len(body) {
			n = len(body)
		}
		fragments = append(fragments, body[:n])
		body = body[n:]
	}
	return &scriptedStream{fragments: fragments}, nil
}

type scriptedStream struct {
	fragments []string
	pos       int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

const validBody = `Sure, here is the form:
{"message":"Form updated: Added email","form_data":{"fields":[
  {"name":"email","label":"Email","type":"email","required":true}
]}}`

func TestReviseSuccess(t *testing.T) {
	e := New(&scriptedBackend{body: validBody}, nil)

	rev, err := e.Revise(context.Background(), "add an email field", form.Empty())
	if err != nil {
		t.Fatalf("Revise failed: %v", err)
	}
	if rev.Message != "Form updated: Added email" {
		t.Errorf("unexpected message: %q", rev.Message)
	}
	if len(rev.Form.Fields) != 1 || rev.Form.Fields[0].Name != "email" {
		t.Errorf("unexpected form: %+v", rev.Form)
	}
}

func TestReviseSendsCurrentFormToBackend(t *testing.T) {
	backend := &scriptedBackend{body: validBody}
	e := New(backend, nil)

	current := form.Form{Fields: []form.Field{
		{Name: "full_name", Label: "Full Name", Type: form.TypeText, Required: true},
	}}
	if _, err := e.Revise(context.Background(), "add an email field", current); err != nil {
		t.Fatalf("Revise failed: %v", err)
	}

	if len(backend.lastMsgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(backend.lastMsgs))
	}
	if !strings.Contains(backend.lastMsgs[1].Content, `"full_name"`) {
		t.Errorf("user turn missing current form: %q", backend.lastMsgs[1].Content)
	}
}

func TestReviseDoesNotMutateCaller(t *testing.T) {
	e := New(&scriptedBackend{body: validBody}, nil)

	current := form.Form{Fields: []form.Field{
		{Name: "full_name", Label: "Full Name", Type: form.TypeText, Required: true},
	}}
	if _, err := e.Revise(context.Background(), "add an email field", current); err != nil {
		t.Fatalf("Revise failed: %v", err)
	}
	if len(current.Fields) != 1 || current.Fields[0].Name != "full_name" {
		t.Errorf("caller's form was mutated: %+v", current)
	}
}

func TestReviseTransportFailure(t *testing.T) {
	e := New(&scriptedBackend{err: errors.New("dial tcp: connection refused")}, nil)

	_, err := e.Revise(context.Background(), "add an email field", form.Empty())
	var revErr *RevisionError
	if !errors.As(err, &revErr) || revErr.Stage != StageTransport {
		t.Fatalf("expected transport-stage error, got %v", err)
	}
}

func TestReviseExtractFailure(t *testing.T) {
	e := New(&scriptedBackend{body: "I am not able to produce JSON today."}, nil)

	_, err := e.Revise(context.Background(), "add an email field", form.Empty())
	var revErr *RevisionError
	if !errors.As(err, &revErr) || revErr.Stage != StageExtract {
		t.Fatalf("expected extract-stage error, got %v", err)
	}
	if !errors.Is(err, extract.ErrMalformed) {
		t.Errorf("error should unwrap to ErrMalformed, got %v", err)
	}
}

func TestReviseValidateFailure(t *testing.T) {
	// Parses fine, but the field is missing its label.
	body := `{"message":"ok","form_data":{"fields":[{"name":"email","type":"email","required":true}]}}`
	e := New(&scriptedBackend{body: body}, nil)

	_, err := e.Revise(context.Background(), "add an email field", form.Empty())
	var revErr *RevisionError
	if !errors.As(err, &revErr) || revErr.Stage != StageValidate {
		t.Fatalf("expected validate-stage error, got %v", err)
	}
}

func TestReviseCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(&scriptedBackend{body: validBody}, nil)
	_, err := e.Revise(ctx, "add an email field", form.Empty())
	var revErr *RevisionError
	if !errors.As(err, &revErr) || revErr.Stage != StageTransport {
		t.Fatalf("expected transport-stage error on cancellation, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should unwrap to context.Canceled, got %v", err)
	}
}

func TestReviseSessionObserverSeesFragments(t *testing.T) {
	e := New(&scriptedBackend{body: validBody}, nil)

	var got strings.Builder
	_, err := e.ReviseSession(context.Background(), "s1", "add an email field", form.Empty(), func(fragment string) {
		got.WriteString(fragment)
	})
	if err != nil {
		t.Fatalf("ReviseSession failed: %v", err)
	}
	if !strings.Contains(got.String(), `"form_data"`) {
		t.Errorf("observer missed fragments: %q", got.String())
	}
}
