package jobspec

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// loadLua executes path as a Lua script and reads the launch request back
// out of a global table named "spec". The script runs with only the
// base, table, string, and math libraries open — no io, os, debug, or
// package access — since a spec script is configuration, not a plugin
// that should be able to touch the filesystem itself.
func loadLua(path string) (spec Spec, err error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("jobspec: %s: lua panic: %v", path, r)
		}
	}()

	if doErr := L.DoFile(path); doErr != nil {
		return Spec{}, fmt.Errorf("jobspec: %s: %w", path, doErr)
	}

	tbl, ok := L.GetGlobal("spec").(*lua.LTable)
	if !ok {
		return Spec{}, fmt.Errorf("jobspec: %s: global 'spec' table not found", path)
	}

	args, err := luaStringSlice(tbl.RawGetString("args"))
	if err != nil {
		return Spec{}, fmt.Errorf("jobspec: %s: args: %w", path, err)
	}
	if len(args) == 0 {
		return Spec{}, fmt.Errorf("jobspec: %s: spec.args must be a non-empty table", path)
	}

	env, err := luaStringSlice(tbl.RawGetString("env"))
	if err != nil {
		return Spec{}, fmt.Errorf("jobspec: %s: env: %w", path, err)
	}

	dir := ""
	if dv := tbl.RawGetString("dir"); dv.Type() == lua.LTString {
		dir = dv.String()
	}

	stderr := ""
	if sv := tbl.RawGetString("stderr"); sv.Type() == lua.LTString {
		stderr = sv.String()
	}

	return Spec{
		Args:       args,
		Env:        env,
		Dir:        dir,
		StderrMode: parseStderrMode(stderr),
	}, nil
}

// luaStringSlice reads a Lua array-style table of strings. A nil or
// missing value yields an empty slice, not an error.
func luaStringSlice(v lua.LValue) ([]string, error) {
	if v == nil || v.Type() == lua.LTNil {
		return nil, nil
	}
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("expected a table, got %s", v.Type())
	}

	var out []string
	var elemErr error
	tbl.ForEach(func(_, val lua.LValue) {
		if elemErr != nil {
			return
		}
		s, ok := val.(lua.LString)
		if !ok {
			elemErr = fmt.Errorf("expected string element, got %s", val.Type())
			return
		}
		out = append(out, string(s))
	})
	return out, elemErr
}
