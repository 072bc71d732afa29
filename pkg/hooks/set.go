package hooks

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Set runs several hook scripts in load order. The first rejection wins, and the first
// script that returns a summary provides it.
type Set struct {
	Modules []*Module
}

func LoadSetFromFiles(ctx context.Context, scriptPaths []string, opts Options) (*Set, error) {
	out := &Set{Modules: make([]*Module, 0, len(scriptPaths))}
	seen := map[string]string{}
	for _, p := range scriptPaths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		m, err := LoadFromFile(ctx, p, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "load hook %s", p)
		}
		if prev, ok := seen[m.Name()]; ok {
			return nil, errors.Errorf("hook name %q registered by both %s and %s", m.Name(), prev, p)
		}
		seen[m.Name()] = p
		out.Modules = append(out.Modules, m)
	}
	if len(out.Modules) == 0 {
		return nil, errors.New("hooks: at least one script is required")
	}
	return out, nil
}

// SplitPaths accepts a comma-separated list as used by the --hooks flag and config key.
func SplitPaths(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Set) Validate(ctx context.Context, step string, result any) error {
	if s == nil {
		return nil
	}
	for _, m := range s.Modules {
		if err := m.Validate(ctx, step, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set) Summarize(ctx context.Context, step string, result any) (string, bool, error) {
	if s == nil {
		return "", false, nil
	}
	for _, m := range s.Modules {
		summary, ok, err := m.Summarize(ctx, step, result)
		if err != nil {
			return "", false, err
		}
		if ok {
			return summary, true, nil
		}
	}
	return "", false, nil
}

func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Modules))
	for _, m := range s.Modules {
		out = append(out, m.Name())
	}
	return out
}
