package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrCompletion tags transport-level model failures (network, timeout,
// non-success status). Never exposed to callers raw.
var ErrCompletion = errors.New("model call failed")

// ErrParse means the model output did not contain a parseable JSON object.
var ErrParse = errors.New("model output is not valid JSON")

// ErrShape means the output parsed as JSON but lacks the expected fields.
var ErrShape = errors.New("model output has unexpected shape")

// rawExcerptLen bounds how much raw model output a ParseError carries for
// diagnosis in error responses and logs.
const rawExcerptLen = 200

// ParseError wraps ErrParse with a truncated excerpt of the raw model output.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model output: %v (raw: %q)", e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// DecodeObject extracts the first JSON object from raw model output and
// unmarshals it into v. Models wrap output in prose or code fences often
// enough that we scan for the outermost braces rather than trusting the
// whole string.
func DecodeObject(raw string, v any) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return &ParseError{Raw: truncate(raw), Err: errors.New("no JSON object found")}
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return &ParseError{Raw: truncate(raw), Err: err}
	}
	return nil
}

func truncate(s string) string {
	if len(s) > rawExcerptLen {
		return s[:rawExcerptLen]
	}
	return s
}
