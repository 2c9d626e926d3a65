package extract

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// fragmentStream replays a fixed fragment sequence, then io.EOF.
type fragmentStream struct {
	fragments []string
	pos       int
}

func (s *fragmentStream) Recv() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

func TestObjectSkipsCommentaryAndFences(t *testing.T) {
	stream := &fragmentStream{fragments: []string{
		"I'll help.\n```json\n{\"message\":\"ok\",",
		"\"form_data\":{\"fields\":[]}}\n```",
	}}

	obj, err := Object(context.Background(), stream)
	if err != nil {
		t.Fatalf("Object failed: %v", err)
	}
	if obj["message"] != "ok" {
		t.Errorf("unexpected object: %v", obj)
	}
}

func TestObjectHandlesFragmentBoundariesEverywhere(t *testing.T) {
	body := `prefix text {"message":"has \"quotes\" and {braces}","form_data":{"fields":[]}} trailing`
	// Split at every position; the scanner must not care where the
	// transport chose to cut.
	for i := 1; i < len(body); i++ {
		stream := &fragmentStream{fragments: []string{body[:i], body[i:]}}
		obj, err := Object(context.Background(), stream)
		if err != nil {
			t.Fatalf("split at %d: %v", i, err)
		}
		if obj["message"] != `has "quotes" and {braces}` {
			t.Fatalf("split at %d: unexpected message %v", i, obj["message"])
		}
	}
}

func TestObjectIgnoresBracesInsideStrings(t *testing.T) {
	stream := &fragmentStream{fragments: []string{
		`{"message":"unbalanced } inside","form_data":{"fields":[]}}`,
	}}
	if _, err := Object(context.Background(), stream); err != nil {
		t.Fatalf("Object failed: %v", err)
	}
}

func TestObjectStreamEndsBeforeClose(t *testing.T) {
	stream := &fragmentStream{fragments: []string{`{"message":"never closes"`}}
	_, err := Object(context.Background(), stream)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestObjectNoBraceAtAll(t *testing.T) {
	stream := &fragmentStream{fragments: []string{"sorry, I cannot do that"}}
	_, err := Object(context.Background(), stream)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestObjectClosedButUnparsable(t *testing.T) {
	stream := &fragmentStream{fragments: []string{`{"message": }`}}
	_, err := Object(context.Background(), stream)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

// stuckStream never produces a fragment; Recv blocks on ctx.
type stuckStream struct{ ctx context.Context }

func (s *stuckStream) Recv() (string, error) {
	<-s.ctx.Done()
	return "", s.ctx.Err()
}

func TestObjectCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Object(ctx, &stuckStream{ctx: ctx})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestObjectPropagatesStreamError(t *testing.T) {
	boom := errors.New("connection reset")
	stream := &errStream{err: boom}
	_, err := Object(context.Background(), stream)
	if !errors.Is(err, boom) {
		t.Fatalf("expected stream error, got %v", err)
	}
}

type errStream struct{ err error }

func (s *errStream) Recv() (string, error) { return "", s.err }

func TestMalformedErrorTruncatesDiagnostic(t *testing.T) {
	long := "{\"message\":\"" + strings.Repeat("a", 4096)
	stream := &fragmentStream{fragments: []string{long}}
	_, err := Object(context.Background(), stream)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(err.Error()) > MaxDiagnosticBytes*2 {
		t.Errorf("diagnostic not bounded: %d bytes", len(err.Error()))
	}
}
