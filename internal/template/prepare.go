// Package template expands the named placeholders in user-supplied command
// templates such as "delvewheel repair -w {dest_dir} {wheel}".
//
// The syntax is the named-field subset of Python's str.format: {name} is
// replaced by its value, {{ and }} produce literal braces. Format specs and
// positional fields are not supported.
package template

import (
	"errors"
	"fmt"
	"strings"
)

// Placeholder names supplied by the pipeline.
const (
	Project = "project"
	Wheel   = "wheel"
	DestDir = "dest_dir"
	Python  = "python"
	Pip     = "pip"
)

// ErrMalformed reports an unbalanced brace in a template.
var ErrMalformed = errors.New("malformed command template")

// UnknownPlaceholderError is returned when a template references a name
// that has no value.
type UnknownPlaceholderError struct {
	Name     string
	Template string
}

func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("unknown placeholder {%s} in %q", e.Name, e.Template)
}

// Prepare substitutes values into command. Values are inserted verbatim,
// no quoting is applied.
func Prepare(command string, values map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(command))

	for i := 0; i < len(command); i++ {
		c := command[i]
		switch c {
		case '{':
			if i+1 < len(command) && command[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexAny(command[i+1:], "{}")
			if end < 0 || command[i+1+end] != '}' {
				return "", fmt.Errorf("%w: unclosed '{' at offset %d in %q", ErrMalformed, i, command)
			}
			name := command[i+1 : i+1+end]
			value, ok := values[name]
			if !ok {
				return "", &UnknownPlaceholderError{Name: name, Template: command}
			}
			b.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(command) && command[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: single '}' at offset %d in %q", ErrMalformed, i, command)
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}

// Values builds a placeholder map with the tool names always present.
// Additional pairs are given as name, value, name, value...
func Values(python, pip string, pairs ...string) map[string]string {
	values := map[string]string{
		Python: python,
		Pip:    pip,
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		values[pairs[i]] = pairs[i+1]
	}
	return values
}
