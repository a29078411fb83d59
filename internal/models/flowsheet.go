package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SolveType selects what the run button does.
type SolveType string

const (
	SolveSingle SolveType = "solve"
	SolveSweep  SolveType = "sweep"
)

// ParseSolveType validates a solve type name.
func ParseSolveType(s string) (SolveType, error) {
	switch SolveType(strings.ToLower(strings.TrimSpace(s))) {
	case SolveSingle:
		return SolveSingle, nil
	case SolveSweep:
		return SolveSweep, nil
	}
	return "", fmt.Errorf("unknown solve type %q (want solve or sweep)", s)
}

// Label is the text the panel shows for the solve type.
func (t SolveType) Label() string {
	if t == SolveSweep {
		return "parameter sweep"
	}
	return "single run"
}

// InputData is the flowsheet's input side: a versioned set of exports.
type InputData struct {
	Version int      `json:"version"`
	Exports *Exports `json:"exports"`

	// Extra keeps the remaining members (model objects, display metadata)
	// that are posted back to the backend untouched.
	Extra map[string]json.RawMessage `json:"-"`

	order []string
}

type inputDataFields InputData

var inputDataKeys = []string{"version", "exports"}

// Inputs returns the exports, creating an empty mapping if there is none.
func (d *InputData) Inputs() *Exports {
	if d.Exports == nil {
		d.Exports = NewExports()
	}
	return d.Exports
}

// Clone returns a deep copy of d.
func (d *InputData) Clone() *InputData {
	if d == nil {
		return nil
	}
	c := &InputData{Version: d.Version, Exports: d.Exports.Clone(), order: d.order}
	if d.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(d.Extra))
		for k, raw := range d.Extra {
			c.Extra[k] = append(json.RawMessage(nil), raw...)
		}
	}
	return c
}

// MarshalJSON implements json.Marshaler.
func (d InputData) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(inputDataFields(d), d.Extra, d.order)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *InputData) UnmarshalJSON(data []byte) error {
	var fields inputDataFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	extra, order, err := splitExtra(data, inputDataKeys)
	if err != nil {
		return err
	}
	*d = InputData(fields)
	d.Extra = extra
	d.order = order
	return nil
}

// FlowsheetData is a named input configuration together with the outputs
// of its last solve.
type FlowsheetData struct {
	Name       string          `json:"name,omitempty"`
	InputData  *InputData      `json:"inputData"`
	OutputData json.RawMessage `json:"outputData,omitempty"`
}

// Clone returns a deep copy of f.
func (f *FlowsheetData) Clone() *FlowsheetData {
	if f == nil {
		return nil
	}
	return &FlowsheetData{
		Name:       f.Name,
		InputData:  f.InputData.Clone(),
		OutputData: append(json.RawMessage(nil), f.OutputData...),
	}
}

// SubprocessCount is the backend's worker-process setting.
type SubprocessCount struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// SubprocessUpdate is the body of an update request.
type SubprocessUpdate struct {
	Value int `json:"value"`
}

// SubprocessUpdateResponse is the backend's answer to an update request.
type SubprocessUpdateResponse struct {
	NewValue int `json:"new_value"`
}
