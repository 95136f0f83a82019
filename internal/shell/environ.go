package shell

import (
	"os"
	"path/filepath"
	"strings"
)

// Assignment is one NAME=value environment override.
type Assignment struct {
	Name  string
	Value string
}

// Environ is an explicit, ordered set of environment variables handed to
// child processes. Keys compare case-insensitively on Windows.
type Environ struct {
	keys   []string
	values map[string]string
	names  map[string]string
}

// NewEnviron builds an Environ from KEY=VALUE pairs such as os.Environ().
func NewEnviron(pairs []string) *Environ {
	e := &Environ{
		values: make(map[string]string, len(pairs)),
		names:  make(map[string]string, len(pairs)),
	}
	for _, kv := range pairs {
		// Windows keeps per-drive cwd entries like "=C:=C:\"; skip them.
		if kv == "" || kv[0] == '=' {
			continue
		}
		k, v, _ := strings.Cut(kv, "=")
		e.Set(k, v)
	}
	return e
}

// HostEnviron snapshots the current process environment.
func HostEnviron() *Environ {
	return NewEnviron(os.Environ())
}

// Get returns the value of key.
func (e *Environ) Get(key string) (string, bool) {
	v, ok := e.values[foldKey(key)]
	return v, ok
}

// Set assigns key, keeping the original spelling of an existing name.
func (e *Environ) Set(key, value string) {
	fk := foldKey(key)
	if _, ok := e.values[fk]; !ok {
		e.keys = append(e.keys, fk)
		e.names[fk] = key
	}
	e.values[fk] = value
}

// PrependPath puts dirs in front of PATH, in the given order.
func (e *Environ) PrependPath(dirs ...string) {
	parts := append([]string{}, dirs...)
	if cur, ok := e.Get("PATH"); ok && cur != "" {
		parts = append(parts, cur)
	}
	e.Set("PATH", strings.Join(parts, string(filepath.ListSeparator)))
}

// Expand replaces $NAME and ${NAME} in s with values from e. "$$" yields
// a literal "$".
func (e *Environ) Expand(s string) string {
	return os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}
		v, _ := e.Get(name)
		return v
	})
}

// Clone returns an independent copy.
func (e *Environ) Clone() *Environ {
	c := &Environ{
		keys:   append([]string{}, e.keys...),
		values: make(map[string]string, len(e.values)),
		names:  make(map[string]string, len(e.names)),
	}
	for k, v := range e.values {
		c.values[k] = v
	}
	for k, v := range e.names {
		c.names[k] = v
	}
	return c
}

// Slice renders the environment as KEY=VALUE pairs for exec.Cmd.Env.
func (e *Environ) Slice() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, e.names[k]+"="+e.values[k])
	}
	return out
}

// ApplyOverrides sets each assignment in the order given, expanding
// references against the environment built so far. An assignment can
// therefore use any name set before it.
func (e *Environ) ApplyOverrides(overrides []Assignment) {
	for _, a := range overrides {
		e.Set(a.Name, e.Expand(a.Value))
	}
}
