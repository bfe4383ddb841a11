package cli

import (
	"context"
	"sort"
)

type EnvironmentHost struct {
	env  map[string]string
	cwd  string
	args []string
}

func NewEnvironmentHost(env map[string]string, args []string, cwd string) *EnvironmentHost {
	if env == nil {
		env = make(map[string]string)
	}
	if cwd == "" {
		cwd = "/"
	}
	return &EnvironmentHost{
		env:  env,
		args: args,
		cwd:  cwd,
	}
}

// GetEnvironment returns the environment sorted by key so that environ
// layout is stable between runs.
func (h *EnvironmentHost) GetEnvironment(_ context.Context) [][2]string {
	keys := make([]string, 0, len(h.env))
	for k := range h.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([][2]string, 0, len(keys))
	for _, k := range keys {
		result = append(result, [2]string{k, h.env[k]})
	}
	return result
}

func (h *EnvironmentHost) GetArguments(_ context.Context) []string {
	return h.args
}

func (h *EnvironmentHost) InitialCwd(_ context.Context) *string {
	return &h.cwd
}
