// Package organize groups a flowsheet's exported variables into category
// sections, rounds their values for display and splits the sections into
// two columns of roughly equal height.
package organize

import (
	"errors"
	"fmt"

	"github.com/watertap-org/flowsheet-int/internal/models"
)

// Column weights. A fixed input renders as a single value field; a free
// input also shows bound and sample controls, about twice the height.
const (
	FixedWeight = 1
	FreeWeight  = 2
)

// Side names a column.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Section is one category's variables.
//
// Variables, InputVariables and OutputVariables hold the same *Variable for
// a key, so a value written through one mapping is seen by the others.
type Section struct {
	DisplayName     string
	Variables       *models.Exports
	InputVariables  *models.Exports
	OutputVariables *models.Exports
	NumVariables    int
	Weight          int
}

func newSection(name string) *Section {
	return &Section{
		DisplayName:     name,
		Variables:       models.NewExports(),
		InputVariables:  models.NewExports(),
		OutputVariables: models.NewExports(),
	}
}

// HasInputs reports whether the section has anything to show in the input
// panel. Sections without inputs are still placed in a column.
func (s *Section) HasInputs() bool {
	return s != nil && s.InputVariables.Len() > 0
}

// Weight returns the column weight of a section's input variables.
func Weight(s *Section) int {
	w := 0
	s.InputVariables.Range(func(_ string, v *models.Variable) bool {
		if v.Fixed {
			w += FixedWeight
		} else {
			w += FreeWeight
		}
		return true
	})
	return w
}

// IssueKind classifies a non-fatal problem found while organizing.
type IssueKind int

const (
	// IssueRounding: a record's value could not be rounded and was kept.
	IssueRounding IssueKind = iota
	// IssuePartition: a section could not be placed in a column.
	IssuePartition
	// IssueRecord: a record was null and was left out of every section.
	IssueRecord
)

func (k IssueKind) String() string {
	switch k {
	case IssueRounding:
		return "rounding"
	case IssuePartition:
		return "partition"
	}
	return "record"
}

// Issue is a non-fatal problem. Key is set for per-record issues, Category
// for per-section issues.
type Issue struct {
	Kind     IssueKind
	Key      string
	Category string
	Err      error
}

func (i Issue) Error() string {
	switch {
	case i.Key != "":
		return fmt.Sprintf("%s: variable %q: %v", i.Kind, i.Key, i.Err)
	case i.Category != "" || i.Kind == IssuePartition:
		return fmt.Sprintf("%s: category %q: %v", i.Kind, i.Category, i.Err)
	}
	return fmt.Sprintf("%s: %v", i.Kind, i.Err)
}

func (i Issue) Unwrap() error { return i.Err }

// Result is the organized layout.
type Result struct {
	// Left and Right list sections in the order they were assigned.
	Left  []*Section
	Right []*Section

	LeftWeight  int
	RightWeight int

	// Rounded holds the display value of every record whose rounding was
	// applied, keyed by variable key.
	Rounded map[string]models.Value

	Issues []Issue
}

// OK reports whether organizing finished without issues.
func (r *Result) OK() bool { return len(r.Issues) == 0 }

// Sections returns all sections, left column first.
func (r *Result) Sections() []*Section {
	out := make([]*Section, 0, len(r.Left)+len(r.Right))
	out = append(out, r.Left...)
	return append(out, r.Right...)
}

// Section returns the section named name and the column it was placed in.
func (r *Result) Section(name string) (*Section, Side, bool) {
	for _, s := range r.Left {
		if s != nil && s.DisplayName == name {
			return s, Left, true
		}
	}
	for _, s := range r.Right {
		if s != nil && s.DisplayName == name {
			return s, Right, true
		}
	}
	return nil, Left, false
}

// Apply writes the rounded values back into exports. Keys that are no
// longer present are ignored.
func (r *Result) Apply(exports *models.Exports) {
	for key, val := range r.Rounded {
		if v, ok := exports.Get(key); ok && v != nil {
			v.Value = val
		}
	}
}

// Organize groups, rounds and balances exports. It does not modify
// exports: sections hold copies of the records, and the display values are
// also reported in Result.Rounded for callers that want to keep them.
func Organize(exports *models.Exports) *Result {
	res := &Result{Rounded: make(map[string]models.Value)}
	sections := group(exports, res)
	balance(sections, res)
	return res
}

// OrganizeInPlace is Organize followed by Apply: the records in exports end
// up holding their rounded display values. Callers must not organize the
// same exports from two goroutines at once.
func OrganizeInPlace(exports *models.Exports) *Result {
	res := Organize(exports)
	res.Apply(exports)
	return res
}

var errNilRecord = errors.New("record is null")

// group builds sections in first-encounter order and rounds each record.
func group(exports *models.Exports, res *Result) []*Section {
	var order []*Section
	byName := make(map[string]*Section)

	exports.Range(func(key string, orig *models.Variable) bool {
		if orig == nil {
			res.Issues = append(res.Issues, Issue{Kind: IssueRecord, Key: key, Err: errNilRecord})
			return true
		}
		v := orig.Clone()

		name := v.InputCategory.Name()
		sec, ok := byName[name]
		if !ok {
			sec = newSection(name)
			byName[name] = sec
			order = append(order, sec)
		}
		sec.Variables.Set(key, v)
		sec.NumVariables++
		if v.IsInput {
			sec.InputVariables.Set(key, v)
		}
		if v.IsOutput {
			sec.OutputVariables.Set(key, v)
		}

		if v.Rounding == nil {
			return true
		}
		rounded, err := Round(v.Value, v.Rounding)
		if err != nil {
			res.Issues = append(res.Issues, Issue{Kind: IssueRounding, Key: key, Category: name, Err: err})
			return true
		}
		v.Value = rounded
		res.Rounded[key] = rounded
		return true
	})
	return order
}

// balance assigns sections to columns in a single greedy pass. The cursor
// starts on the left and moves to the other side only when the side just
// filled is strictly heavier. There is no lookahead: the resulting order is
// what the panel has always shown.
func balance(sections []*Section, res *Result) {
	target := Left
	for _, sec := range sections {
		placeSection(sec, &target, res)
	}
}

func placeSection(sec *Section, target *Side, res *Result) {
	defer func() {
		if p := recover(); p != nil {
			res.Issues = append(res.Issues, Issue{
				Kind:     IssuePartition,
				Category: sectionName(sec),
				Err:      fmt.Errorf("unexpected section data: %v", p),
			})
		}
	}()

	if sec == nil || sec.InputVariables == nil {
		res.Issues = append(res.Issues, Issue{
			Kind:     IssuePartition,
			Category: sectionName(sec),
			Err:      errors.New("section has no variable table"),
		})
		return
	}

	sec.Weight = Weight(sec)
	if *target == Left {
		res.Left = append(res.Left, sec)
		res.LeftWeight += sec.Weight
		if res.LeftWeight > res.RightWeight {
			*target = Right
		}
		return
	}
	res.Right = append(res.Right, sec)
	res.RightWeight += sec.Weight
	if res.RightWeight > res.LeftWeight {
		*target = Left
	}
}

func sectionName(sec *Section) string {
	if sec == nil {
		return ""
	}
	return sec.DisplayName
}
