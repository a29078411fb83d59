package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/watertap-org/flowsheet-int/internal/models"
)

const sampleInputs = `{
  "version": 2,
  "exports": {
    "flow": {"display_name": "Feed flow", "value": 1.23456, "input_category": "Feed",
             "is_input": true, "is_output": false, "fixed": true, "rounding": 2},
    "pressure": {"display_name": "Pump pressure", "value": 65, "input_category": "Pump",
                 "is_input": true, "is_output": false, "fixed": false, "lb": 10, "ub": 80},
    "recovery": {"display_name": "Water recovery", "value": 0.5, "input_category": "Results",
                 "is_input": false, "is_output": true, "fixed": false}
  }
}`

// fakeBackend serves the flowsheet endpoints for flowsheet "ro".
type fakeBackend struct {
	mu      sync.Mutex
	names   []string
	posted  map[string]json.RawMessage
	workers int
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{names: []string{"base", "alt"}, posted: map[string]json.RawMessage{}, workers: 2}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch r.Method + " " + r.URL.Path {
	case "GET /flowsheets/ro/list_configs":
		_ = json.NewEncoder(w).Encode(fb.names)
	case "GET /flowsheets/ro/load_config":
		if r.URL.Query().Get("config_name") != "base" {
			http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"inputData":`+sampleInputs+`,"outputData":{"exports":{}}}`)
	case "DELETE /flowsheets/ro/delete_config":
		name := r.URL.Query().Get("config_name")
		var rest []string
		for _, n := range fb.names {
			if n != name {
				rest = append(rest, n)
			}
		}
		fb.names = rest
		_ = json.NewEncoder(w).Encode(fb.names)
	case "GET /flowsheets/get_number_of_subprocesses":
		_, _ = io.WriteString(w, `{"current":`+itoa(fb.workers)+`,"max":4}`)
	case "POST /flowsheets/update_number_of_subprocesses":
		var body models.SubprocessUpdate
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.workers = body.Value
		_, _ = io.WriteString(w, `{"new_value":`+itoa(body.Value)+`}`)
	case "POST /flowsheets/ro/solve", "POST /flowsheets/ro/sweep":
		body, _ := io.ReadAll(r.Body)
		fb.posted[r.URL.Path] = body
		_, _ = io.WriteString(w, `{"exports":{"recovery":{"value":0.61}}}`)
	default:
		http.NotFound(w, r)
	}
}

func (fb *fakeBackend) state() ([]string, int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.names...), fb.workers
}

func (fb *fakeBackend) body(path string) (json.RawMessage, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	b, ok := fb.posted[path]
	return b, ok
}

func itoa(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}

func backendArgs(t *testing.T, url string, args ...string) []string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config")
	return append([]string{"--config-file", cfgPath, "--backend-url", url, "--flowsheet", "ro"}, args...)
}

func writeInputs(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inputs.json")
	if err := os.WriteFile(path, []byte(sampleInputs), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)

	for _, name := range []string{"configs", "layout", "subprocesses", "run", "config", "completion"} {
		if findSub(root, name) == nil {
			t.Errorf("command %q not registered", name)
		}
	}
	for _, name := range []string{"list", "load", "delete"} {
		if findSub(findSub(root, "configs"), name) == nil {
			t.Errorf("configs %s not registered", name)
		}
	}
	for _, name := range []string{"get", "set"} {
		if findSub(findSub(root, "subprocesses"), name) == nil {
			t.Errorf("subprocesses %s not registered", name)
		}
	}
}

func TestLayoutFromFile(t *testing.T) {
	path := writeInputs(t)

	out, err := executeCmd(t, "", "--config-file", filepath.Join(t.TempDir(), "c"), "layout", "--file", path, "--width", "120")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	first := strings.SplitN(out, "\n", 2)[0]
	if !strings.Contains(first, "Feed") || !strings.Contains(first, "Pump") {
		t.Errorf("expected Feed and Pump side by side, got:\n%s", out)
	}
	if !strings.Contains(out, "1.23") || strings.Contains(out, "1.23456") {
		t.Errorf("flow should be rounded to two places:\n%s", out)
	}
	if strings.Contains(out, "Results") {
		t.Errorf("output-only section shown without --all:\n%s", out)
	}
}

func TestLayoutDocument(t *testing.T) {
	path := writeInputs(t)

	out, err := executeCmd(t, "", "--config-file", filepath.Join(t.TempDir(), "c"), "layout", "--file", path, "-o", "json")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}

	var doc struct {
		Left []struct {
			Name string `json:"display_name"`
		} `json:"left"`
		Right []struct {
			Name string `json:"display_name"`
		} `json:"right"`
		LeftWeight  int `json:"left_weight"`
		RightWeight int `json:"right_weight"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("invalid JSON %v:\n%s", err, out)
	}
	if len(doc.Left) != 1 || doc.Left[0].Name != "Feed" || len(doc.Right) != 1 || doc.Right[0].Name != "Pump" {
		t.Errorf("unexpected columns: %+v", doc)
	}
	if doc.LeftWeight != 1 || doc.RightWeight != 2 {
		t.Errorf("weights = %d/%d, want 1/2", doc.LeftWeight, doc.RightWeight)
	}
}

func TestLayoutNeedsSource(t *testing.T) {
	if _, err := executeCmd(t, "", "--config-file", filepath.Join(t.TempDir(), "c"), "layout"); err == nil {
		t.Error("expected error without --config or --file")
	}
	if _, err := executeCmd(t, "", "--config-file", filepath.Join(t.TempDir(), "c"), "layout", "--config", "a", "--file", "b"); err == nil {
		t.Error("expected error with both --config and --file")
	}
}

func TestConfigsList(t *testing.T) {
	_, srv := newFakeBackend(t)

	out, err := executeCmd(t, "", backendArgs(t, srv.URL, "configs", "list", "--version", "2")...)
	if err != nil {
		t.Fatalf("configs list: %v", err)
	}
	if diff := cmp.Diff("base\nalt\n", out); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigsLoad(t *testing.T) {
	_, srv := newFakeBackend(t)

	out, err := executeCmd(t, "", backendArgs(t, srv.URL, "configs", "load", "base")...)
	if err != nil {
		t.Fatalf("configs load: %v", err)
	}
	var data models.FlowsheetData
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if data.Name != "base" || data.InputData == nil || data.InputData.Inputs().Len() != 3 {
		t.Errorf("unexpected loaded data: %+v", data)
	}

	if _, err := executeCmd(t, "", backendArgs(t, srv.URL, "configs", "load", "missing")...); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestConfigsDelete(t *testing.T) {
	fb, srv := newFakeBackend(t)

	// Declined confirmation deletes nothing.
	if _, err := executeCmd(t, "n\n", backendArgs(t, srv.URL, "configs", "delete", "alt")...); err != nil {
		t.Fatalf("configs delete: %v", err)
	}
	if names, _ := fb.state(); len(names) != 2 {
		t.Fatalf("config deleted without confirmation: %v", names)
	}

	out, err := executeCmd(t, "", backendArgs(t, srv.URL, "configs", "delete", "alt", "--yes")...)
	if err != nil {
		t.Fatalf("configs delete --yes: %v", err)
	}
	if out != "base\n" {
		t.Errorf("remaining names = %q, want base", out)
	}

	if _, err := executeCmd(t, "", backendArgs(t, srv.URL, "configs", "delete", "nope", "--yes")...); err == nil {
		t.Error("expected error deleting an unknown config")
	}
}

func TestSubprocesses(t *testing.T) {
	fb, srv := newFakeBackend(t)

	out, err := executeCmd(t, "", backendArgs(t, srv.URL, "subprocesses", "set", "3.7")...)
	if err != nil {
		t.Fatalf("subprocesses set: %v", err)
	}
	if _, workers := fb.state(); out != "3 (max 4)\n" || workers != 3 {
		t.Errorf("out = %q, workers = %d; want 3", out, workers)
	}

	for _, bad := range []string{"0", "5", "abc", "NaN", ""} {
		if _, err := executeCmd(t, "", backendArgs(t, srv.URL, "subprocesses", "set", bad)...); err == nil {
			t.Errorf("set %q: expected error", bad)
		}
	}
	if _, workers := fb.state(); workers != 3 {
		t.Errorf("invalid input reached the backend: workers = %d", workers)
	}

	out, err = executeCmd(t, "", backendArgs(t, srv.URL, "subprocesses", "get")...)
	if err != nil || out != "3 (max 4)\n" {
		t.Errorf("subprocesses get = %q, %v", out, err)
	}
}

func TestRunSolveWithEdits(t *testing.T) {
	fb, srv := newFakeBackend(t)

	out, err := executeCmd(t, "", backendArgs(t, srv.URL,
		"run", "--config", "base", "--set", "flow=2.5", "--fix", "pressure", "--ub", "pressure=90")...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, `"value": 0.61`) {
		t.Errorf("output data not printed:\n%s", out)
	}

	var posted models.InputData
	body, _ := fb.body("/flowsheets/ro/solve")
	if err := json.Unmarshal(body, &posted); err != nil {
		t.Fatalf("posted body: %v", err)
	}
	flow, _ := posted.Inputs().Get("flow")
	pressure, _ := posted.Inputs().Get("pressure")
	if f, _ := flow.Value.Float(); f != 2.5 {
		t.Errorf("flow = %v, want 2.5", flow.Value)
	}
	if !pressure.Fixed || pressure.UpperBound == nil || *pressure.UpperBound != 90 {
		t.Errorf("pressure edits not posted: %+v", pressure)
	}
}

func TestRunSweep(t *testing.T) {
	fb, srv := newFakeBackend(t)
	args := backendArgs(t, srv.URL, "run", "--file", writeInputs(t), "--mode", "sweep")

	// No swept input: the run is disabled.
	if _, err := executeCmd(t, "", args...); err == nil || !strings.Contains(err.Error(), "at least one variable must be set to sweep") {
		t.Fatalf("expected run-disabled error, got %v", err)
	}
	if _, ok := fb.body("/flowsheets/ro/sweep"); ok {
		t.Fatal("disabled run reached the backend")
	}

	outPath := filepath.Join(t.TempDir(), "out.yaml")
	args = append(args, "--sweep", "pressure", "--samples", "pressure=5", "--out", outPath, "-o", "yaml")
	if _, err := executeCmd(t, "", args...); err != nil {
		t.Fatalf("run sweep: %v", err)
	}

	var posted models.InputData
	body, _ := fb.body("/flowsheets/ro/sweep")
	if err := json.Unmarshal(body, &posted); err != nil {
		t.Fatalf("posted body: %v", err)
	}
	pressure, _ := posted.Inputs().Get("pressure")
	if !pressure.IsSweep || pressure.Fixed || pressure.NumSamples != 5 {
		t.Errorf("sweep settings not posted: %+v", pressure)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "value: 0.61") {
		t.Errorf("unexpected YAML output:\n%s", data)
	}
}

func TestRunRejectsUnknownVariable(t *testing.T) {
	_, srv := newFakeBackend(t)
	_, err := executeCmd(t, "", backendArgs(t, srv.URL, "run", "--config", "base", "--set", "recovery=1")...)
	if err == nil || !strings.Contains(err.Error(), "unknown input variable") {
		t.Errorf("expected unknown input error for an output variable, got %v", err)
	}
}

func TestSplitAssignment(t *testing.T) {
	tests := []struct {
		in         string
		key, value string
		wantErr    bool
	}{
		{"flow=2.5", "flow", "2.5", false},
		{" flow = 2.5 ", "flow", "2.5", false},
		{"name=a=b", "name", "a=b", false},
		{"flow=", "flow", "", false},
		{"flow", "", "", true},
		{"=1", "", "", true},
	}
	for _, tt := range tests {
		key, value, err := splitAssignment(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("splitAssignment(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if key != tt.key || value != tt.value {
			t.Errorf("splitAssignment(%q) = %q, %q; want %q, %q", tt.in, key, value, tt.key, tt.value)
		}
	}
}

func TestParseFlowsheet(t *testing.T) {
	bare, err := parseFlowsheet([]byte(sampleInputs))
	if err != nil {
		t.Fatalf("bare input data: %v", err)
	}
	if bare.InputData.Version != 2 || bare.InputData.Inputs().Len() != 3 {
		t.Errorf("unexpected bare parse: %+v", bare.InputData)
	}

	full, err := parseFlowsheet([]byte(`{"name":"base","inputData":` + sampleInputs + `}`))
	if err != nil {
		t.Fatalf("flowsheet data: %v", err)
	}
	if full.Name != "base" || full.InputData.Inputs().Len() != 3 {
		t.Errorf("unexpected full parse: %+v", full)
	}

	if _, err := parseFlowsheet([]byte(`[1,2]`)); err == nil {
		t.Error("expected error for a non-object document")
	}
}

func TestWriteOutputYAMLKeepsKeyOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := writeOutput(&buf, "yaml", json.RawMessage(`{"zeta":1,"alpha":{"x":[1,2]}}`)); err != nil {
		t.Fatal(err)
	}
	want := "zeta: 1\nalpha:\n  x:\n    - 1\n    - 2\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("YAML mismatch (-want +got):\n%s", diff)
	}

	if err := writeOutput(&buf, "xml", []int{1}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestConfirm(t *testing.T) {
	tests := map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false}
	for in, want := range tests {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(in), &out, "Delete?")
		if err != nil {
			t.Fatalf("confirm(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("confirm(%q) = %v, want %v", in, got, want)
		}
		if !strings.Contains(out.String(), "Delete? [y/N]") {
			t.Errorf("prompt missing: %q", out.String())
		}
	}
}
