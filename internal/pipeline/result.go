package pipeline

import (
	"errors"

	"github.com/Brownie44l1/animegan-api/internal/failure"
)

// FailurePrefix marks a failed run in the single-string form.
const FailurePrefix = "Prediction failed: "

// Result is the outcome of one run: a path on success or a Failure.
type Result struct {
	Path    string   `json:"path,omitempty"`
	Failure *Failure `json:"error,omitempty"`
}

// Failure describes which stage failed and why.
type Failure struct {
	Kind    failure.Kind `json:"kind"`
	Stage   string       `json:"stage"`
	Message string       `json:"message"`
}

func (r Result) OK() bool {
	return r.Failure == nil
}

// Err returns nil on success, otherwise an error carrying the failure kind.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return failure.New(r.Failure.Kind, r.Failure.Stage, errors.New(r.Failure.Message))
}

// String flattens the result for hosts that only accept one string: the
// output path, or the failure message behind FailurePrefix.
func (r Result) String() string {
	if r.Failure == nil {
		return r.Path
	}
	return FailurePrefix + r.Failure.Stage + ": " + r.Failure.Message
}
