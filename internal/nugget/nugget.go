// Package nugget defines the canonical extraction result shared by all
// providers and the normalizer that maps vendor payloads onto it.
package nugget

import (
	"github.com/go-playground/validator/v10"
)

// Type categorizes an extracted nugget.
type Type string

const (
	TypeTool        Type = "tool"
	TypeMedia       Type = "media"
	TypeExplanation Type = "explanation"
	TypeAnalogy     Type = "analogy"
	TypeModel       Type = "model"
)

// Types lists every valid nugget type.
var Types = []Type{TypeTool, TypeMedia, TypeExplanation, TypeAnalogy, TypeModel}

// Nugget is one extracted insight. StartContent and EndContent are the
// model's approximate quotations of where the insight begins and ends in
// the source document.
type Nugget struct {
	Type         Type   `json:"type" validate:"required,oneof=tool media explanation analogy model"`
	StartContent string `json:"startContent" validate:"required"`
	EndContent   string `json:"endContent" validate:"required"`
	Synthesis    string `json:"synthesis" validate:"required"`
}

// Response is the provider-independent extraction result. Nugget order is
// the model's output order and is never rearranged.
type Response struct {
	Nuggets []Nugget `json:"golden_nuggets" validate:"dive"`
}

var validate = validator.New()

// Check returns the first structural violation in the response, or nil.
func (r Response) Check() error {
	return validate.Struct(r)
}

// Valid is the boolean form of the structural check: the nugget list is
// present (possibly empty), every type is a known enum value, and every
// string field is non-empty. It never panics, whatever the input.
func Valid(candidate any) bool {
	switch v := candidate.(type) {
	case Response:
		return v.Check() == nil
	case *Response:
		return v != nil && v.Check() == nil
	default:
		return validFromJSON(candidate)
	}
}
