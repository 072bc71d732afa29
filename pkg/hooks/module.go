// Package hooks runs user JavaScript against step results. A script calls
// register({name, validate, summarize, init}) once; every hook is optional except name.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrNoRegister = errors.New("hooks: script did not call register()")
var ErrHookTimeout = errors.New("hooks: js hook timeout")

type Module struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	opts   Options
	config *goja.Object

	scriptPath string
	name       string

	validateFn  goja.Callable
	summarizeFn goja.Callable
	initFn      goja.Callable

	state *goja.Object
	stats Stats
}

func LoadFromFile(ctx context.Context, scriptPath string, opts Options) (*Module, error) {
	b, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, errors.Wrap(err, "read hook script")
	}
	return Load(ctx, scriptPath, string(b), opts)
}

// Load compiles source under the given name and runs it once to collect register().
func Load(ctx context.Context, scriptPath string, source string, opts Options) (*Module, error) {
	m := &Module{
		vm:         goja.New(),
		opts:       opts,
		scriptPath: scriptPath,
	}
	enableConsole(m)
	m.state = m.vm.NewObject()

	if err := m.vm.Set("register", func(config goja.Value) error {
		if m.config != nil {
			return errors.New("register() called more than once")
		}
		if isNullish(config) {
			return errors.New("register(config) requires a config object")
		}
		m.config = config.ToObject(m.vm)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "set register")
	}

	if _, err := m.vm.RunScript("hooks:helpers", helpersJS); err != nil {
		return nil, errors.Wrap(err, "load helpers")
	}
	if err := injectGoHelpers(m); err != nil {
		return nil, err
	}

	prog, err := goja.Compile(scriptPath, source, false)
	if err != nil {
		return nil, errors.Wrap(err, "compile hook script")
	}
	if _, err := m.run(func() (goja.Value, error) { return m.vm.RunProgram(prog) }); err != nil {
		return nil, errors.Wrap(err, "run hook script")
	}

	if m.config == nil {
		return nil, ErrNoRegister
	}

	nameVal := m.config.Get("name")
	if isNullish(nameVal) || strings.TrimSpace(nameVal.String()) == "" {
		return nil, errors.New("register({ name: string, ... }): name is required")
	}
	m.name = nameVal.String()

	for key, dst := range map[string]*goja.Callable{
		"validate":  &m.validateFn,
		"summarize": &m.summarizeFn,
		"init":      &m.initFn,
	} {
		v := m.config.Get(key)
		if isNullish(v) {
			continue
		}
		fn, ok := goja.AssertFunction(v)
		if !ok {
			return nil, errors.Errorf("register({ %s }): %s must be a function", key, key)
		}
		*dst = fn
	}

	if m.initFn != nil {
		if _, err := m.callHook("init", m.initFn, m.buildContext("init", "")); err != nil {
			m.stats.HookErrors++
			return nil, errors.Wrapf(err, "hook %q init", m.name)
		}
	}

	log.Debug().Str("hook", m.name).Str("path", scriptPath).Msg("loaded hook script")
	return m, nil
}

func (m *Module) Name() string       { return m.name }
func (m *Module) ScriptPath() string { return m.scriptPath }

func (m *Module) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Module) Info() Info {
	return Info{
		Name:         m.name,
		ScriptPath:   m.scriptPath,
		HasValidate:  m.validateFn != nil,
		HasSummarize: m.summarizeFn != nil,
		HasInit:      m.initFn != nil,
	}
}

// Validate calls validate(step, result, ctx). Returning false or a non-empty string
// rejects the result; throwing is reported as a hook error.
func (m *Module) Validate(ctx context.Context, step string, result any) error {
	if m.validateFn == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Validations++

	arg, err := m.toJS(result)
	if err != nil {
		return err
	}
	v, err := m.callHook("validate", m.validateFn, m.vm.ToValue(step), arg, m.buildContext("validate", step))
	if err != nil {
		m.stats.HookErrors++
		return errors.Wrapf(err, "hook %q validate %s", m.name, step)
	}
	if isNullish(v) {
		return nil
	}
	switch vv := v.Export().(type) {
	case bool:
		if !vv {
			m.stats.Rejections++
			return &RejectedError{Hook: m.name, Step: step, Message: "validation returned false"}
		}
	case string:
		if strings.TrimSpace(vv) != "" {
			m.stats.Rejections++
			return &RejectedError{Hook: m.name, Step: step, Message: vv}
		}
	}
	return nil
}

// Summarize calls summarize(step, result, ctx); ok is false when the hook is missing or
// returns nothing.
func (m *Module) Summarize(ctx context.Context, step string, result any) (summary string, ok bool, err error) {
	if m.summarizeFn == nil {
		return "", false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	arg, err := m.toJS(result)
	if err != nil {
		return "", false, err
	}
	v, err := m.callHook("summarize", m.summarizeFn, m.vm.ToValue(step), arg, m.buildContext("summarize", step))
	if err != nil {
		m.stats.HookErrors++
		return "", false, errors.Wrapf(err, "hook %q summarize %s", m.name, step)
	}
	if isNullish(v) {
		return "", false, nil
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return "", false, nil
	}
	m.stats.Summaries++
	return s, true, nil
}

// toJS passes results through JSON so scripts see the wire field names.
func (m *Module) toJS(v any) (goja.Value, error) {
	if v == nil {
		return goja.Null(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode result for hook")
	}
	var plain any
	if err := json.Unmarshal(b, &plain); err != nil {
		return nil, errors.Wrap(err, "decode result for hook")
	}
	return m.vm.ToValue(plain), nil
}

func (m *Module) buildContext(hook string, step string) *goja.Object {
	obj := m.vm.NewObject()
	_ = obj.Set("hook", hook)
	_ = obj.Set("step", step)
	_ = obj.Set("module", m.name)
	_ = obj.Set("state", m.state)
	_ = obj.Set("now", m.newDate(time.Now().UTC()))
	return obj
}

func (m *Module) newDate(t time.Time) goja.Value {
	ctor := m.vm.Get("Date")
	o, err := m.vm.New(ctor, m.vm.ToValue(t.UnixMilli()))
	if err != nil {
		return goja.Undefined()
	}
	return o
}

func (m *Module) callHook(hook string, fn goja.Callable, args ...goja.Value) (goja.Value, error) {
	return m.run(func() (goja.Value, error) { return fn(goja.Undefined(), args...) })
}

func (m *Module) run(f func() (goja.Value, error)) (goja.Value, error) {
	if m.opts.Timeout > 0 {
		timer := time.AfterFunc(m.opts.Timeout, func() {
			m.vm.Interrupt(ErrHookTimeout)
		})
		defer m.vm.ClearInterrupt()
		defer timer.Stop()
	}

	v, err := f()
	if err != nil {
		if isInterruptedByTimeout(err) {
			m.stats.HookTimeouts++
			return nil, errors.Wrapf(ErrHookTimeout, "after %s", m.opts.Timeout)
		}
		return nil, err
	}
	return v, nil
}

// enableConsole routes console output to the logger so it cannot corrupt the terminal UI.
func enableConsole(m *Module) {
	obj := m.vm.NewObject()
	emit := func(level string) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			ev := log.Info()
			switch level {
			case "warn":
				ev = log.Warn()
			case "error":
				ev = log.Error()
			}
			ev.Str("hook", m.name).Msg(joinArgs(call.Arguments))
			return goja.Undefined()
		}
	}
	_ = obj.Set("log", emit("log"))
	_ = obj.Set("warn", emit("warn"))
	_ = obj.Set("error", emit("error"))
	_ = m.vm.Set("console", obj)
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if o, ok := a.(*goja.Object); ok && o.ClassName() != "Function" {
			if b, err := json.Marshal(o.Export()); err == nil {
				parts = append(parts, string(b))
				continue
			}
		}
		parts = append(parts, fmt.Sprint(a.Export()))
	}
	return strings.Join(parts, " ")
}

func isNullish(v goja.Value) bool {
	if v == nil {
		return true
	}
	return goja.IsUndefined(v) || goja.IsNull(v)
}

func isInterruptedByTimeout(err error) bool {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if v, ok := interrupted.Value().(error); ok && errors.Is(v, ErrHookTimeout) {
			return true
		}
	}
	return errors.Is(err, ErrHookTimeout)
}

func injectGoHelpers(m *Module) error {
	forgeVal := m.vm.Get("forge")
	if isNullish(forgeVal) {
		return errors.New("hooks: helpers did not define globalThis.forge")
	}
	forgeObj := forgeVal.ToObject(m.vm)

	// forge.parseTimestamp(value) accepts backend timestamps, other date strings and
	// unix seconds or milliseconds. Returns a Date or null.
	if err := forgeObj.Set("parseTimestamp", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 || isNullish(call.Arguments[0]) {
			return goja.Null()
		}
		t, ok := parseTimestamp(call.Arguments[0].Export())
		if !ok {
			return goja.Null()
		}
		return m.newDate(t.UTC())
	}); err != nil {
		return errors.Wrap(err, "set forge.parseTimestamp")
	}

	// forge.kb(string) is the size of a string in whole KiB, rounded.
	if err := forgeObj.Set("kb", func(s string) int64 {
		return (int64(len(s)) + 512) / 1024
	}); err != nil {
		return errors.Wrap(err, "set forge.kb")
	}
	return nil
}

func parseTimestamp(v any) (time.Time, bool) {
	numeric := func(i int64) (time.Time, bool) {
		// seconds below 1e12, milliseconds above
		if i > 0 && i < 1_000_000_000_000 {
			return time.Unix(i, 0).UTC(), true
		}
		return time.UnixMilli(i).UTC(), true
	}
	switch vv := v.(type) {
	case time.Time:
		return vv, true
	case int64:
		return numeric(vv)
	case float64:
		return numeric(int64(vv))
	case string:
		s := strings.TrimSpace(vv)
		if s == "" {
			return time.Time{}, false
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return numeric(i)
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
