// Package artifact checks, repairs and writes the script returned by the model.
package artifact

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/kayz/dashgen/internal/config"
	"github.com/kayz/dashgen/internal/logger"
)

const (
	// ImportMarker must appear in any usable response.
	ImportMarker = "import dash"
	// MainGuard is the entry point the script is expected to end with.
	MainGuard = "if __name__ == '__main__':"

	languageLabel = "python"
	previewLen    = 500
)

// MainTrailer is appended when MainGuard is missing.
const MainTrailer = "\n\n# --- Main execution block ---\n" +
	MainGuard + "\n" +
	"    # Make sure data loading is handled above if running standalone\n" +
	"    app.run(debug=True)\n"

var (
	ErrUnexpectedShape = errors.New("unexpected response shape")
	ErrSyntax          = errors.New("generated code failed syntax check")
)

// ShapeError describes a response rejected by the shape check.
type ShapeError struct {
	Reason  string
	Preview string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnexpectedShape, e.Reason)
}

func (e *ShapeError) Unwrap() error {
	return ErrUnexpectedShape
}

// Artifact is a validated script.
type Artifact struct {
	Code     string
	Repaired bool
	Warnings []string
}

// SyntaxChecker is the hook for stricter validation of generated code.
type SyntaxChecker interface {
	Check(code string) error
}

// Validator applies the shape check, cleanup, repair and syntax policy.
type Validator struct {
	policy  string
	checker SyntaxChecker
}

type Option func(*Validator)

// WithSyntaxChecker replaces the built-in PythonChecker.
func WithSyntaxChecker(c SyntaxChecker) Option {
	return func(v *Validator) { v.checker = c }
}

// NewValidator builds a validator for policy (off, warn or fail).
func NewValidator(policy string, opts ...Option) *Validator {
	if policy == "" {
		policy = config.SyntaxCheckOff
	}
	v := &Validator{policy: policy, checker: PythonChecker{}}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateAndRepair rejects responses without ImportMarker, strips fences and
// a leading language label, and appends MainTrailer when MainGuard is absent.
// Existing text is never altered beyond the trimming. The result always ends
// with one newline, so running it again returns the same code.
func (v *Validator) ValidateAndRepair(raw string) (*Artifact, error) {
	if !strings.Contains(raw, ImportMarker) {
		return nil, &ShapeError{
			Reason:  fmt.Sprintf("response does not contain %q", ImportMarker),
			Preview: preview(raw),
		}
	}

	code := Clean(raw)
	a := &Artifact{}
	if !strings.Contains(code, MainGuard) {
		logger.Warn("Generated code missing %q block, appending a default", MainGuard)
		code += MainTrailer
		a.Repaired = true
	}
	a.Code = strings.TrimRight(code, "\n") + "\n"

	if v.policy == config.SyntaxCheckOff || v.checker == nil {
		return a, nil
	}
	if err := v.checker.Check(a.Code); err != nil {
		if v.policy == config.SyntaxCheckFail {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		logger.Warn("Syntax check: %v", err)
		a.Warnings = append(a.Warnings, err.Error())
	}
	return a, nil
}

// Clean trims whitespace and backtick fences, then drops a leading
// "python" label left over from a fenced block.
func Clean(raw string) string {
	code := strings.TrimSpace(raw)
	code = strings.Trim(code, "`")
	code = strings.TrimSpace(code)

	if rest, ok := strings.CutPrefix(code, languageLabel); ok {
		if rest == "" || unicode.IsSpace(rune(rest[0])) {
			code = strings.TrimLeftFunc(rest, unicode.IsSpace)
		}
	}
	return code
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen])
}
