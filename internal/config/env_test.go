package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosanma1/wheelforge/internal/shell"
)

func lookupFrom(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	c.Environment = Environment{{Name: "KEEP", Value: "yes"}, {Name: "CFLAGS", Value: "-O0"}}

	err := c.ApplyEnv(lookupFrom(map[string]string{
		EnvBeforeBuild:    "pip install cython",
		EnvRepairCommand:  "delvewheel repair -w {dest_dir} {wheel}",
		EnvBuildVerbosity: " -2 ",
		EnvBuild:          "cp312-*",
		EnvTestCommand:    "pytest {project}",
		EnvTestRequires:   "pytest  numpy>=1.26",
		EnvTestExtras:     "test",
		EnvEnvironment:    `CFLAGS="-O2 -g" EXTRA_PATH='C:\tools'`,
		EnvOutputDir:      "out",
	}))
	require.NoError(t, err)

	assert.Equal(t, "pip install cython", c.BeforeBuild)
	assert.Equal(t, "delvewheel repair -w {dest_dir} {wheel}", c.RepairCommand)
	assert.Equal(t, -2, c.BuildVerbosity)
	assert.Equal(t, "cp312-*", c.Build)
	assert.Equal(t, "pytest {project}", c.Test.Command)
	assert.Equal(t, []string{"pytest", "numpy>=1.26"}, c.Test.Requires)
	assert.Equal(t, "[test]", c.Test.Extras)
	assert.Equal(t, "out", c.OutputDir)
	assert.Equal(t, Environment{
		{Name: "KEEP", Value: "yes"},
		{Name: "CFLAGS", Value: "-O2 -g"},
		{Name: "EXTRA_PATH", Value: `C:\tools`},
	}, c.Environment)
}

func TestApplyEnv_EmptyClears(t *testing.T) {
	c := Default()
	c.RepairCommand = "delvewheel repair {wheel}"

	require.NoError(t, c.ApplyEnv(lookupFrom(map[string]string{EnvRepairCommand: ""})))
	assert.Empty(t, c.RepairCommand)
}

func TestApplyEnv_Unset(t *testing.T) {
	c := Default()
	require.NoError(t, c.ApplyEnv(lookupFrom(nil)))
	assert.Equal(t, Default(), c)
}

func TestApplyEnv_BadVerbosity(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(lookupFrom(map[string]string{EnvBuildVerbosity: "lots"}))
	assert.Error(t, err)
}

func TestParseEnvironment(t *testing.T) {
	env, err := ParseEnvironment(`A=1 B="two words" C=$A/x`)
	require.NoError(t, err)
	assert.Equal(t, Environment{
		{Name: "A", Value: "1"},
		{Name: "B", Value: "two words"},
		{Name: "C", Value: "$A/x"},
	}, env)

	_, err = ParseEnvironment("JUSTAWORD")
	assert.Error(t, err)

	_, err = ParseEnvironment("=value")
	assert.Error(t, err)

	_, err = ParseEnvironment(`A="unterminated`)
	assert.Error(t, err)

	env, err = ParseEnvironment("")
	require.NoError(t, err)
	assert.Empty(t, env)
}

func TestParseEnvironment_KeepsWrittenOrder(t *testing.T) {
	env, err := ParseEnvironment("ZLIB=/opt/zlib CFLAGS=-I$ZLIB/include")
	require.NoError(t, err)

	expanded := shell.NewEnviron(nil)
	expanded.ApplyOverrides(env)
	v, _ := expanded.Get("CFLAGS")
	assert.Equal(t, "-I/opt/zlib/include", v)
}

func TestParseEnvironment_LiteralDollar(t *testing.T) {
	env, err := ParseEnvironment(`A='$HOME/x' B="$HOME/y" C=\$HOME D="\$HOME" E='it''s$'`)
	require.NoError(t, err)
	assert.Equal(t, Environment{
		{Name: "A", Value: "$$HOME/x"},
		{Name: "B", Value: "$HOME/y"},
		{Name: "C", Value: "$$HOME"},
		{Name: "D", Value: "$$HOME"},
		{Name: "E", Value: "its$$"},
	}, env)

	expanded := shell.NewEnviron([]string{"HOME=/home/ci"})
	expanded.ApplyOverrides(env)
	for name, want := range map[string]string{
		"A": "$HOME/x",
		"B": "/home/ci/y",
		"C": "$HOME",
		"D": "$HOME",
		"E": "its$",
	} {
		got, _ := expanded.Get(name)
		assert.Equal(t, want, got, name)
	}
}
