package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/dosanma1/wheelforge/internal/shell"
)

// Environment variables read by ApplyEnv.
const (
	EnvOutputDir      = "CIBW_OUTPUT_DIR"
	EnvBeforeBuild    = "CIBW_BEFORE_BUILD"
	EnvRepairCommand  = "CIBW_REPAIR_WHEEL_COMMAND"
	EnvBuildVerbosity = "CIBW_BUILD_VERBOSITY"
	EnvBuild          = "CIBW_BUILD"
	EnvEnvironment    = "CIBW_ENVIRONMENT"
	EnvTestCommand    = "CIBW_TEST_COMMAND"
	EnvBeforeTest     = "CIBW_BEFORE_TEST"
	EnvTestRequires   = "CIBW_TEST_REQUIRES"
	EnvTestExtras     = "CIBW_TEST_EXTRAS"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from CIBW_* variables. A variable that is set
// to the empty string clears the field.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvOutputDir, &c.OutputDir},
		{EnvBeforeBuild, &c.BeforeBuild},
		{EnvRepairCommand, &c.RepairCommand},
		{EnvBuild, &c.Build},
		{EnvTestCommand, &c.Test.Command},
		{EnvBeforeTest, &c.Test.Before},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = v
		}
	}

	if v, ok := lookup(EnvTestExtras); ok {
		c.Test.Extras = NormalizeExtras(v)
	}

	if v, ok := lookup(EnvTestRequires); ok {
		c.Test.Requires = strings.Fields(v)
	}

	if v, ok := lookup(EnvBuildVerbosity); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", EnvBuildVerbosity, v)
		}
		c.BuildVerbosity = n
	}

	if v, ok := lookup(EnvEnvironment); ok {
		env, err := ParseEnvironment(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvEnvironment, err)
		}
		c.Environment.Merge(env)
	}

	return nil
}

// ParseEnvironment parses shell-style assignments such as
// `ZLIB=/opt/zlib CFLAGS="-I$ZLIB/include -O2"` in the order written.
// Quotes group words and $ references are kept for expansion at run time.
// A $ inside single quotes or escaped as \$ stays literal: it is
// rewritten to $$, which expansion turns back into $.
func ParseEnvironment(s string) (Environment, error) {
	words, err := shlex.Split(protectLiteralDollars(s))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", s, err)
	}

	env := make(Environment, 0, len(words))
	for _, w := range words {
		k, v, ok := strings.Cut(w, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%q is not a NAME=value assignment", w)
		}
		env = append(env, shell.Assignment{Name: k, Value: v})
	}
	return env, nil
}

// protectLiteralDollars doubles every $ that the shell would not expand,
// before shlex strips the quoting that says so.
func protectLiteralDollars(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var single, double bool
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case single:
			if c == '\'' {
				single = false
			} else if c == '$' {
				b.WriteByte('$')
			}
		case c == '\\' && i+1 < len(s):
			i++
			if s[i] == '$' {
				b.WriteString("$$")
				continue
			}
			b.WriteByte(c)
			c = s[i]
		case c == '"':
			double = !double
		case c == '\'' && !double:
			single = true
		}
		b.WriteByte(c)
	}
	return b.String()
}
