package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/iancoleman/orderedmap"
)

const sampleInput = `{
	"version": 2,
	"model_objects": {"m.fs.feed": {"units": "kg/s"}},
	"exports": {
		"zeta": {"name": "Zeta", "value": 1.5, "input_category": "Feed", "is_input": true, "fixed": true, "rounding": 2, "obj_key": "m.fs.zeta"},
		"alpha": {"name": "Alpha", "value": "n/a", "input_category": null, "is_output": true},
		"mid": {"name": "Mid", "value": true, "is_input": true, "lb": 0, "ub": 10, "num_samples": 4},
		"gone": null
	}
}`

func TestInputDataPreservesKeyOrder(t *testing.T) {
	var d InputData
	if err := json.Unmarshal([]byte(sampleInput), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := []string{"zeta", "alpha", "mid", "gone"}
	if diff := cmp.Diff(want, d.Exports.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if d.Version != 2 {
		t.Errorf("Version = %d, want 2", d.Version)
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(out)
	if !(strings.Index(s, `"zeta"`) < strings.Index(s, `"alpha"`) && strings.Index(s, `"alpha"`) < strings.Index(s, `"mid"`)) {
		t.Errorf("encoded exports lost key order: %s", s)
	}
	if !strings.Contains(s, `"model_objects"`) {
		t.Errorf("unknown top-level member dropped: %s", s)
	}
	if !strings.Contains(s, `"obj_key":"m.fs.zeta"`) {
		t.Errorf("unknown variable member dropped: %s", s)
	}
}

func TestVariableFields(t *testing.T) {
	var d InputData
	if err := json.Unmarshal([]byte(sampleInput), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	zeta, _ := d.Exports.Get("zeta")
	if zeta.InputCategory.Name() != "Feed" || !zeta.InputCategory.IsNamed() {
		t.Errorf("zeta category = %q", zeta.InputCategory.Name())
	}
	if digits, err := zeta.Rounding.Digits(); err != nil || digits != 2 {
		t.Errorf("zeta rounding = %v (%v)", zeta.Rounding, err)
	}

	alpha, _ := d.Exports.Get("alpha")
	if alpha.InputCategory.IsNamed() {
		t.Error("null input_category should be uncategorized")
	}
	if alpha.Value.Kind() != KindString {
		t.Errorf("alpha value kind = %s, want string", alpha.Value.Kind())
	}

	mid, _ := d.Exports.Get("mid")
	if mid.InputCategory.IsNamed() {
		t.Error("missing input_category should be uncategorized")
	}
	if mid.LowerBound == nil || *mid.LowerBound != 0 || mid.UpperBound == nil || *mid.UpperBound != 10 {
		t.Errorf("mid bounds = %v, %v", mid.LowerBound, mid.UpperBound)
	}
	if mid.Rounding != nil {
		t.Errorf("mid rounding = %v, want nil", mid.Rounding)
	}

	gone, ok := d.Exports.Get("gone")
	if !ok || gone != nil {
		t.Errorf("gone = %v, %v; want nil entry", gone, ok)
	}
}

func TestEmptyCategoryIsUncategorized(t *testing.T) {
	var c Category
	if err := json.Unmarshal([]byte(`""`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.IsNamed() || c != Uncategorized() {
		t.Errorf("empty string category should equal Uncategorized()")
	}
	if err := json.Unmarshal([]byte(`5`), &c); err == nil {
		t.Error("numeric category should be rejected")
	}
}

func TestValueNumeric(t *testing.T) {
	tests := []struct {
		name    string
		value   Value
		want    float64
		wantErr bool
	}{
		{"number", Number(3.25), 3.25, false},
		{"numeric string", StringValue(" 12.5 "), 12.5, false},
		{"text", StringValue("abc"), 0, true},
		{"empty string", StringValue(""), 0, true},
		{"bool", Bool(true), 0, true},
		{"null", Null(), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.value.Numeric()
			if tt.wantErr {
				if !errors.Is(err, ErrNotNumeric) {
					t.Errorf("Numeric() error = %v, want ErrNotNumeric", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Numeric() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Numeric() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	if v := ParseValue("1e3"); !v.Equal(Number(1000)) {
		t.Errorf("ParseValue(1e3) = %v", v)
	}
	if v := ParseValue("false"); !v.Equal(Bool(false)) {
		t.Errorf("ParseValue(false) = %v", v)
	}
	if v := ParseValue("kg/s"); !v.Equal(StringValue("kg/s")) {
		t.Errorf("ParseValue(kg/s) = %v", v)
	}
}

func TestExportsCloneIsDeep(t *testing.T) {
	lb := 1.0
	e := NewExports()
	e.Set("a", &Variable{Value: Number(1), LowerBound: &lb})

	c := e.Clone()
	cv, _ := c.Get("a")
	cv.Value = Number(2)
	*cv.LowerBound = 5

	orig, _ := e.Get("a")
	if !orig.Value.Equal(Number(1)) || *orig.LowerBound != 1 {
		t.Errorf("clone shares state with original: %+v", orig)
	}
}

func TestExportsSetKeepsPosition(t *testing.T) {
	e := NewExports()
	e.Set("a", &Variable{})
	e.Set("b", &Variable{})
	e.Set("a", &Variable{Fixed: true})

	if diff := cmp.Diff([]string{"a", "b"}, e.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if a, _ := e.Get("a"); !a.Fixed {
		t.Error("Set did not replace the existing record")
	}
}

func TestVariableKeepsMemberOrder(t *testing.T) {
	in := `{"obj_key":"m.fs.a","value":1,"name":"A","rounding":2,"is_input":true,"zz":[1],"fixed":false}`
	var v Variable
	if err := json.Unmarshal([]byte(in), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	o := orderedmap.New()
	if err := json.Unmarshal(out, o); err != nil {
		t.Fatalf("re-read %s: %v", out, err)
	}
	got := o.Keys()
	want := []string{
		"obj_key", "value", "name", "rounding", "is_input", "zz", "fixed",
		"input_category", "is_output", "is_sweep", "num_samples", "lb", "ub",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("key order mismatch (-want +got):\n%s", diff)
	}
}

func TestNewVariableExtraAfterFields(t *testing.T) {
	v := Variable{Name: "A", Extra: map[string]json.RawMessage{"z": json.RawMessage(`1`), "b": json.RawMessage(`2`)}}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"name":"A","value":null,"input_category":null,"is_input":false,"is_output":false,"fixed":false,"is_sweep":false,"num_samples":0,"lb":null,"ub":null,"rounding":null,"b":2,"z":1}`
	if diff := cmp.Diff(want, string(out)); diff != "" {
		t.Errorf("encoding mismatch (-want +got):\n%s", diff)
	}
}

func TestLenientFieldsDecode(t *testing.T) {
	in := `{
		"a": {"value": {"index": 1}, "rounding": "3"},
		"b": {"value": 2, "rounding": 1.5},
		"c": {"value": 3, "rounding": 2.0},
		"d": {"value": 4, "rounding": [1]}
	}`
	e := NewExports()
	if err := json.Unmarshal([]byte(in), e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	a, _ := e.Get("a")
	if a.Value.Kind() != KindRaw {
		t.Errorf("a value kind = %s, want raw", a.Value.Kind())
	}
	if _, err := a.Value.Numeric(); !errors.Is(err, ErrNotNumeric) {
		t.Errorf("raw Numeric() error = %v, want ErrNotNumeric", err)
	}

	tests := []struct {
		key     string
		want    int
		wantErr bool
	}{
		{"a", 3, false},
		{"b", 0, true},
		{"c", 2, false},
		{"d", 0, true},
	}
	for _, tt := range tests {
		v, _ := e.Get(tt.key)
		got, err := v.Rounding.Digits()
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("%s: Digits() = %d, %v; want %d, error %v", tt.key, got, err, tt.want, tt.wantErr)
		}
	}

	out, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, frag := range []string{`"value":{"index":1}`, `"rounding":"3"`, `"rounding":1.5`, `"rounding":[1]`} {
		if !strings.Contains(string(out), frag) {
			t.Errorf("encoded exports missing %s: %s", frag, out)
		}
	}
}

func TestParseSolveType(t *testing.T) {
	if st, err := ParseSolveType("Sweep"); err != nil || st != SolveSweep {
		t.Errorf("ParseSolveType(Sweep) = %v, %v", st, err)
	}
	if _, err := ParseSolveType("optimize"); err == nil {
		t.Error("expected error for unknown solve type")
	}
}
