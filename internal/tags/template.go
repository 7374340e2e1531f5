// Package tags resolves push tag templates into concrete image references.
package tags

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sourceplane/litejob/internal/model"
)

// Built-in run variables
const (
	VarExecutionNumber      = "EXECUTION_NUMBER"
	VarSpaceExecutionNumber = "JB_SPACE_EXECUTION_NUMBER"
	VarBranch               = "BRANCH"
	VarCommit               = "COMMIT"
	VarCommitShort          = "COMMIT_SHORT"
	VarJobName              = "JOB_NAME"
)

const maxTagLength = 128

var (
	// ErrUnknownVariable is returned when a template names a variable with no value
	ErrUnknownVariable = errors.New("unknown template variable")
	// ErrInvalidTag is returned when a template resolves to nothing usable
	ErrInvalidTag = errors.New("invalid tag")
	// ErrMalformedTemplate is returned for placeholder syntax errors
	ErrMalformedTemplate = errors.New("malformed template")

	invalidTagChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
)

// Variables builds the run variables of one job execution. Extra variables
// (event-supplied, dotenv) are added but never override the built-ins.
func Variables(jobName string, event model.PushEvent, extra ...map[string]string) map[string]string {
	vars := make(map[string]string)
	for _, m := range extra {
		for k, v := range m {
			vars[k] = v
		}
	}

	number := strconv.FormatInt(event.ExecutionNumber, 10)
	vars[VarExecutionNumber] = number
	vars[VarSpaceExecutionNumber] = number
	vars[VarBranch] = event.BranchName()
	vars[VarCommit] = event.Commit
	vars[VarCommitShort] = event.ShortCommit()
	vars[VarJobName] = jobName
	return vars
}

// Expand substitutes $NAME and ${NAME} placeholders, where NAME is
// [A-Za-z_][A-Za-z0-9_]*. Every referenced variable must be defined.
func Expand(template string, vars map[string]string) (string, error) {
	var missing []string
	out, err := scan(template, func(name string) string {
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if err != nil {
		return "", err
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: %s in %q", ErrUnknownVariable, strings.Join(missing, ", "), template)
	}
	return out, nil
}

// Validate checks template syntax without resolving any variable
func Validate(template string) error {
	_, err := scan(template, func(string) string { return "" })
	return err
}

func scan(template string, lookup func(name string) string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(template); {
		c := template[i]
		if c != '$' {
			sb.WriteByte(c)
			i++
			continue
		}

		rest := template[i+1:]
		if strings.HasPrefix(rest, "{") {
			end := strings.IndexByte(rest, '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unterminated ${ in %q", ErrMalformedTemplate, template)
			}
			name := rest[1:end]
			if !isName(name) {
				return "", fmt.Errorf("%w: invalid placeholder ${%s} in %q", ErrMalformedTemplate, name, template)
			}
			sb.WriteString(lookup(name))
			i += 1 + end + 1
			continue
		}

		n := nameLength(rest)
		if n == 0 {
			return "", fmt.Errorf("%w: $ at offset %d is not followed by a variable name in %q", ErrMalformedTemplate, i, template)
		}
		sb.WriteString(lookup(rest[:n]))
		i += 1 + n
	}
	return sb.String(), nil
}

// nameLength returns the length of the variable name prefix of s
func nameLength(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		letter := c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
		if letter || (i > 0 && c >= '0' && c <= '9') {
			continue
		}
		return i
	}
	return len(s)
}

func isName(s string) bool {
	return s != "" && nameLength(s) == len(s)
}

// Resolve expands a tag template and sanitizes the result to the Docker tag grammar
func Resolve(template string, vars map[string]string) (string, error) {
	expanded, err := Expand(template, vars)
	if err != nil {
		return "", err
	}

	tag := Sanitize(expanded)
	if tag == "" {
		return "", fmt.Errorf("%w: template %q resolved to an empty tag", ErrInvalidTag, template)
	}
	return tag, nil
}

// ResolveAll resolves templates in order, dropping duplicates (first occurrence wins)
func ResolveAll(templates []string, vars map[string]string) ([]string, error) {
	resolved := make([]string, 0, len(templates))
	seen := make(map[string]bool, len(templates))

	for _, tmpl := range templates {
		tag, err := Resolve(tmpl, vars)
		if err != nil {
			return nil, err
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		resolved = append(resolved, tag)
	}
	return resolved, nil
}

// Sanitize maps an arbitrary string onto [A-Za-z0-9_][A-Za-z0-9_.-]{0,127}.
// Branch names such as feature/login become feature-login.
func Sanitize(s string) string {
	s = invalidTagChars.ReplaceAllString(s, "-")
	s = strings.TrimLeft(s, ".-")
	if len(s) > maxTagLength {
		s = s[:maxTagLength]
	}
	return s
}
