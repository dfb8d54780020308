package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindIOFailure              Kind = "IO_FAILURE"
	KindEncodingFailure        Kind = "ENCODING_FAILURE"
	KindSyntaxFailure          Kind = "SYNTAX_FAILURE"
	KindInferenceIndeterminate Kind = "INFERENCE_INDETERMINATE"
)

// BuildError is the closed failure taxonomy crossing from external
// collaborators into the builder. Raw collaborator errors never leave
// the package that produced them; they travel wrapped in here.
type BuildError struct {
	Kind    Kind
	Message string
	Modname string
	Path    string
	Source  string // original source text, syntax failures only
	Err     error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Modname != "" || e.Path != "" {
		msg = fmt.Sprintf("%s (module=%q path=%q)", msg, e.Modname, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) *BuildError {
	return &BuildError{Kind: kind, Message: msg}
}

func Wrap(err error, kind Kind, msg string) *BuildError {
	return &BuildError{Kind: kind, Message: msg, Err: err}
}

func (e *BuildError) WithModule(modname string) *BuildError {
	e.Modname = modname
	return e
}

func (e *BuildError) WithPath(path string) *BuildError {
	e.Path = path
	return e
}

func (e *BuildError) WithSource(source string) *BuildError {
	e.Source = source
	return e
}

// IsKind reports whether err is (or wraps) a BuildError of the given kind.
func IsKind(err error, kind Kind) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// AddModule stamps the module name onto an existing BuildError, or wraps
// a foreign error so the name is not lost.
func AddModule(err error, modname string) error {
	var be *BuildError
	if errors.As(err, &be) {
		if be.Modname == "" {
			be.Modname = modname
		}
		return be
	}
	return &BuildError{Kind: KindIOFailure, Message: "wrapped error", Modname: modname, Err: err}
}
