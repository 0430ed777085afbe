package graph

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"rulegraph/internal/resolver"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrVariableNotFound = errors.New("variable not found")
)

const (
	MinDepth        = 1
	MaxDepth        = 20
	DefaultMaxDepth = 10
)

// Request describes one graph build. It is constructed per call and never
// retained.
type Request struct {
	Country             string   `json:"country"`
	Variable            string   `json:"variable" validate:"required"`
	MaxDepth            int      `json:"maxDepth" validate:"min=1,max=20"`
	ExpandAddsSubtracts bool     `json:"expandAddsSubtracts"`
	ShowParameters      bool     `json:"showParameters"`
	ParamDetailLevel    string   `json:"paramDetailLevel" validate:"omitempty,detail_level"`
	ParamDate           string   `json:"paramDate" validate:"omitempty,datetime=2006-01-02"`
	ShowLabels          bool     `json:"showLabels"`
	StopVariables       []string `json:"stopVariables" validate:"dive,required"`
	NoParamsList        []string `json:"noParamsList"`
	IgnoreDefaultStops  bool     `json:"ignoreDefaultStops"`
}

// DefaultRequest returns a request with every option at its default.
// Decoding a JSON body on top of it keeps defaults for absent fields.
func DefaultRequest() Request {
	return Request{
		MaxDepth:            DefaultMaxDepth,
		ExpandAddsSubtracts: true,
		ShowParameters:      true,
		ParamDetailLevel:    string(resolver.Summary),
		ShowLabels:          true,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("detail_level", func(fl validator.FieldLevel) bool {
		_, err := resolver.ParseDetailLevel(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks the request. Every failure wraps ErrInvalidRequest.
func (r *Request) Validate() error {
	r.Variable = strings.TrimSpace(r.Variable)
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s must be between %d and %d", fe.Field(), MinDepth, MaxDepth)
	case "detail_level":
		return fmt.Sprintf("%s must be one of Minimal, Summary, Full", fe.Field())
	case "datetime":
		return fmt.Sprintf("%s must be a YYYY-MM-DD date", fe.Field())
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}

// DetailLevel returns the parsed parameter detail level.
func (r *Request) DetailLevel() resolver.DetailLevel {
	level, err := resolver.ParseDetailLevel(r.ParamDetailLevel)
	if err != nil {
		return resolver.Summary
	}
	return level
}

// AsOf returns the parameter date, or the zero time for "latest".
func (r *Request) AsOf() time.Time {
	if r.ParamDate == "" {
		return time.Time{}
	}
	t, err := resolver.ParseDate(r.ParamDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// StopSet merges the request's stop variables with the defaults unless
// the request opts out of them.
func (r *Request) StopSet(defaults []string) map[string]bool {
	set := make(map[string]bool, len(defaults)+len(r.StopVariables))
	if !r.IgnoreDefaultStops {
		for _, name := range defaults {
			set[name] = true
		}
	}
	for _, name := range r.StopVariables {
		set[strings.TrimSpace(name)] = true
	}
	return set
}

// StopsRoot reports whether the root variable is named in the request's
// own stop variables. Default stops never apply to the root.
func (r *Request) StopsRoot() bool {
	for _, name := range r.StopVariables {
		if strings.TrimSpace(name) == r.Variable {
			return true
		}
	}
	return false
}
