package render

import (
	"github.com/watertap-org/flowsheet-int/internal/models"
	"github.com/watertap-org/flowsheet-int/internal/organize"
)

// Document is the layout in a form suited to JSON and YAML encoders.
type Document struct {
	Left        []SectionDoc `json:"left" yaml:"left"`
	Right       []SectionDoc `json:"right" yaml:"right"`
	LeftWeight  int          `json:"left_weight" yaml:"left_weight"`
	RightWeight int          `json:"right_weight" yaml:"right_weight"`
	Issues      []string     `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// SectionDoc is one category section.
type SectionDoc struct {
	Name         string        `json:"display_name" yaml:"display_name"`
	Weight       int           `json:"weight" yaml:"weight"`
	NumVariables int           `json:"num_variables" yaml:"num_variables"`
	Inputs       []VariableDoc `json:"input_variables" yaml:"input_variables"`
	Outputs      []string      `json:"output_variables,omitempty" yaml:"output_variables,omitempty"`
}

// VariableDoc is one input variable as displayed.
type VariableDoc struct {
	Key        string       `json:"key" yaml:"key"`
	Label      string       `json:"label,omitempty" yaml:"label,omitempty"`
	Value      models.Value `json:"value" yaml:"value"`
	Units      string       `json:"units,omitempty" yaml:"units,omitempty"`
	Fixed      bool         `json:"fixed" yaml:"fixed"`
	IsSweep    bool         `json:"is_sweep,omitempty" yaml:"is_sweep,omitempty"`
	NumSamples int          `json:"num_samples,omitempty" yaml:"num_samples,omitempty"`
	LowerBound *float64     `json:"lb,omitempty" yaml:"lb,omitempty"`
	UpperBound *float64     `json:"ub,omitempty" yaml:"ub,omitempty"`
}

// NewDocument converts res. Sections without inputs are dropped unless showAll.
func NewDocument(res *organize.Result, showAll bool) *Document {
	doc := &Document{
		Left:        sectionDocs(res.Left, showAll),
		Right:       sectionDocs(res.Right, showAll),
		LeftWeight:  res.LeftWeight,
		RightWeight: res.RightWeight,
	}
	for _, issue := range res.Issues {
		doc.Issues = append(doc.Issues, issue.Error())
	}
	return doc
}

func sectionDocs(sections []*organize.Section, showAll bool) []SectionDoc {
	docs := make([]SectionDoc, 0, len(sections))
	for _, sec := range sections {
		if sec == nil || (!showAll && !sec.HasInputs()) {
			continue
		}
		sd := SectionDoc{
			Name:         sec.DisplayName,
			Weight:       sec.Weight,
			NumVariables: sec.NumVariables,
			Inputs:       []VariableDoc{},
		}
		sec.InputVariables.Range(func(key string, v *models.Variable) bool {
			sd.Inputs = append(sd.Inputs, VariableDoc{
				Key:        key,
				Label:      v.Label(),
				Value:      v.Value,
				Units:      v.DisplayUnits,
				Fixed:      v.Fixed,
				IsSweep:    v.IsSweep,
				NumSamples: v.NumSamples,
				LowerBound: v.LowerBound,
				UpperBound: v.UpperBound,
			})
			return true
		})
		sd.Outputs = sec.OutputVariables.Keys()
		docs = append(docs, sd)
	}
	return docs
}
