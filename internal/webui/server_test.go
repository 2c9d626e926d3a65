package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/kayz/formforge/internal/engine"
	"github.com/kayz/formforge/internal/extract"
	"github.com/kayz/formforge/internal/form"
	"github.com/kayz/formforge/internal/prompt"
	"github.com/kayz/formforge/internal/provider"
)

// newTestServer wires the full stack over the offline rule backend so API
// behavior is exercised end to end without a model.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	sessions := engine.NewSessionStore(engine.New(provider.NewRuleBased(), nil))
	ts := httptest.NewServer(NewServer(sessions, nil, "rules").Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func formFields(t *testing.T, payload map[string]any) []any {
	t.Helper()
	fd, ok := payload["form_data"].(map[string]any)
	if !ok {
		t.Fatalf("no form_data in %v", payload)
	}
	fields, ok := fd["fields"].([]any)
	if !ok {
		t.Fatalf("no fields in %v", fd)
	}
	return fields
}

func TestGetFormStartsEmpty(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/form", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(formFields(t, body)) != 0 {
		t.Errorf("expected empty form, got %v", body)
	}
}

func TestReviseFlow(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/revise",
		map[string]string{"instruction": "add a required text field for name and an optional email field"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	if msg, _ := body["message"].(string); !strings.HasPrefix(msg, "Form updated:") {
		t.Errorf("unexpected message: %v", body["message"])
	}
	if len(formFields(t, body)) != 2 {
		t.Fatalf("expected 2 fields: %v", body)
	}

	// The session keeps the revised form.
	_, got := doJSON(t, http.MethodGet, ts.URL+"/api/form", nil)
	if len(formFields(t, got)) != 2 {
		t.Errorf("session lost the revision: %v", got)
	}
}

func TestReviseDisputeRemovesField(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/revise",
		map[string]string{"instruction": "add a text field for name and a text field for fax"})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/revise",
		map[string]string{"instruction": "I didn't ask for a fax field"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	if msg, _ := body["message"].(string); !strings.Contains(msg, "Corrected by removing fax") {
		t.Errorf("unexpected message: %v", body["message"])
	}
	fields := formFields(t, body)
	if len(fields) != 1 {
		t.Fatalf("disputed field not removed: %v", fields)
	}
}

func TestReviseRequiresInstruction(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/revise", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestReviseWithFormOverride(t *testing.T) {
	ts := newTestServer(t)

	override := form.Form{Fields: []form.Field{
		{Name: "full_name", Label: "Full Name", Type: form.TypeText, Required: true},
	}}
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/revise", map[string]any{
		"instruction": "add an email field",
		"form_data":   override,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	if len(formFields(t, body)) != 2 {
		t.Errorf("override ignored: %v", body)
	}
}

// garbageBackend talks prose instead of JSON so every revision fails in
// extraction.
type garbageBackend struct{}

func (garbageBackend) Name() string { return "garbage" }

func (garbageBackend) Complete(context.Context, []prompt.Message) (extract.Stream, error) {
	return &oneShotStream{text: "I cannot produce JSON today."}, nil
}

type oneShotStream struct {
	text string
	done bool
}

func (s *oneShotStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	s.done = true
	return s.text, nil
}

func TestReviseOverrideNotCommittedOnFailure(t *testing.T) {
	sessions := engine.NewSessionStore(engine.New(garbageBackend{}, nil))
	ts := httptest.NewServer(NewServer(sessions, nil, "garbage").Handler())
	defer ts.Close()

	// Seed the session through a direct edit.
	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/api/form/fields/email",
		map[string]string{"name": "email", "label": "Email", "type": "email"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("seed failed: %d", resp.StatusCode)
	}

	override := form.Form{Fields: []form.Field{
		{Name: "full_name", Label: "Full Name", Type: form.TypeText, Required: true},
	}}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/revise", map[string]any{
		"instruction": "add a phone field",
		"form_data":   override,
	})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}

	// The failed revision must not leave the override behind.
	_, body := doJSON(t, http.MethodGet, ts.URL+"/api/form", nil)
	fields := formFields(t, body)
	if len(fields) != 1 {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if name := fields[0].(map[string]any)["name"]; name != "email" {
		t.Errorf("session left on the override: %v", fields)
	}
}

func TestSetFormEndpoint(t *testing.T) {
	ts := newTestServer(t)

	payload := map[string]any{"form_data": form.Form{Fields: []form.Field{
		{Name: "age", Label: "Age", Type: form.TypeNumber, Required: true},
	}}}
	resp, body := doJSON(t, http.MethodPut, ts.URL+"/api/form", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	if len(formFields(t, body)) != 1 {
		t.Errorf("form not installed: %v", body)
	}

	dup := map[string]any{"form_data": form.Form{Fields: []form.Field{
		{Name: "age", Label: "Age", Type: form.TypeNumber, Required: true},
		{Name: "age", Label: "Age Again", Type: form.TypeNumber, Required: true},
	}}}
	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/form", dup)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for duplicate names", resp.StatusCode)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/revise",
		strings.NewReader(`{"instruction":"add a text field for name"}`))
	req.Header.Set("X-Session-ID", "alpha")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	_, other := doJSON(t, http.MethodGet, ts.URL+"/api/form?session=beta", nil)
	if len(formFields(t, other)) != 0 {
		t.Errorf("session beta saw alpha's form: %v", other)
	}
}

func TestResetClearsForm(t *testing.T) {
	ts := newTestServer(t)
	doJSON(t, http.MethodPost, ts.URL+"/api/revise",
		map[string]string{"instruction": "add a text field for name"})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/reset", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(formFields(t, body)) != 0 {
		t.Errorf("reset left fields behind: %v", body)
	}
}

func TestPutFieldDefaultsRequired(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodPut, ts.URL+"/api/form/fields/email",
		map[string]string{"name": "email", "label": "Email", "type": "email"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	fields := formFields(t, body)
	if len(fields) != 1 {
		t.Fatalf("expected 1 field: %v", fields)
	}
	fld := fields[0].(map[string]any)
	if fld["required"] != true {
		t.Errorf("required should default to true: %v", fld)
	}
}

func TestPutFieldRejectsBadDefinition(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/api/form/fields/color",
		map[string]string{"name": "color", "label": "Color", "type": "dropdown"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for dropdown without options", resp.StatusCode)
	}
}

func TestDeleteFieldNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/api/form/fields/ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteField(t *testing.T) {
	ts := newTestServer(t)
	doJSON(t, http.MethodPut, ts.URL+"/api/form/fields/email",
		map[string]string{"name": "email", "label": "Email", "type": "email"})

	resp, body := doJSON(t, http.MethodDelete, ts.URL+"/api/form/fields/email", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(formFields(t, body)) != 0 {
		t.Errorf("field not deleted: %v", body)
	}
}

func TestHistoryDisabled(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/history", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when history is disabled", resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["ok"] != true || body["provider"] != "rules" {
		t.Errorf("unexpected status payload: %v", body)
	}
}

func TestNewSession(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/session", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if id, _ := body["session_id"].(string); id == "" {
		t.Errorf("no session id in %v", body)
	}
}

func TestReviseWebsocket(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/revise/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"instruction": "add a text field for name"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	sawDelta := false
	for {
		var ev struct {
			Type    string     `json:"type"`
			Message string     `json:"message"`
			Form    *form.Form `json:"form_data"`
			Error   string     `json:"error"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		switch ev.Type {
		case "delta":
			sawDelta = true
		case "result":
			if !sawDelta {
				t.Error("result arrived with no preceding delta")
			}
			if ev.Form == nil || len(ev.Form.Fields) != 1 {
				t.Errorf("unexpected result form: %+v", ev.Form)
			}
			return
		case "error":
			t.Fatalf("revision failed over websocket: %s", ev.Error)
		}
	}
}
