// Package topic renders parameterized topic patterns into concrete
// publish topics.
//
// Topic patterns contain {name} placeholders that are substituted with
// the string form of their mapped values at publish time, producing
// dynamic routing keys such as account or order identifiers:
//
//	topic.Render("acct/{accountID}/applied", map[string]any{"accountID": "12345"})
//	// "acct/12345/applied"
package topic

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {name} where name is alphanumeric with
// underscores. Malformed braces are left untouched.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// MissingAction controls what happens when a placeholder has no
// corresponding parameter.
type MissingAction int

const (
	// MissingKeep leaves unmapped placeholders as literal text.
	MissingKeep MissingAction = iota

	// MissingEmpty replaces unmapped placeholders with the empty string.
	MissingEmpty

	// MissingError causes Render to return an UndefinedParamError.
	MissingError
)

// Renderer substitutes {name} placeholders in topic patterns.
//
// Create with NewRenderer() and configure with Option functions.
// Renderer is safe for concurrent use after construction.
type Renderer struct {
	missingAction MissingAction
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithMissingAction sets the behavior for unmapped placeholders.
func WithMissingAction(action MissingAction) Option {
	return func(r *Renderer) {
		r.missingAction = action
	}
}

// NewRenderer creates a Renderer with the given options.
//
// The default leaves unmapped placeholders as-is (MissingKeep), which
// matches the routing contract: a missing key is not an error.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{missingAction: MissingKeep}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render substitutes placeholders in pattern using params.
//
// Values are converted with fmt's %v verb, so numeric parameters render
// without quoting. An error is only returned when MissingError is set and
// a placeholder has no parameter.
func (r *Renderer) Render(pattern string, params map[string]any) (string, error) {
	if pattern == "" {
		return "", nil
	}

	var missing []string
	result := placeholderPattern.ReplaceAllStringFunc(pattern, func(match string) string {
		name := match[1 : len(match)-1]
		if val, ok := params[name]; ok {
			return fmt.Sprintf("%v", val)
		}
		switch r.missingAction {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, name)
			return match
		default: // MissingKeep
			return match
		}
	})

	if len(missing) > 0 {
		return result, &UndefinedParamError{Names: missing}
	}
	return result, nil
}

// UndefinedParamError is returned when MissingError is set and one or
// more placeholders have no parameter.
type UndefinedParamError struct {
	// Names is the list of unresolved placeholder names.
	Names []string
}

// Error implements the error interface.
func (e *UndefinedParamError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined topic parameter: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined topic parameters: %s", strings.Join(e.Names, ", "))
}

// defaultRenderer is the package-level renderer with MissingKeep behavior.
var defaultRenderer = NewRenderer()

// Render substitutes placeholders using the default renderer.
//
// Unmapped placeholders stay as literal text; Render never fails.
func Render(pattern string, params map[string]any) string {
	result, _ := defaultRenderer.Render(pattern, params)
	return result
}
