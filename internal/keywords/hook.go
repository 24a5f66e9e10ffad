package keywords

import (
	"context"
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
)

// Hook runs a user Lua script's filter(words) function in a sandboxed state
// with only the base, string, table and math libraries.
type Hook struct {
	path   string
	source string
}

// LoadHook reads the script at path and checks it defines filter.
func LoadHook(path string) (*Hook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword script: %w", err)
	}
	hook := &Hook{path: path, source: string(data)}
	L := hook.newState()
	defer L.Close()
	if err := L.DoString(hook.source); err != nil {
		return nil, fmt.Errorf("load keyword script %s: %w", path, err)
	}
	if fn, ok := L.GetGlobal("filter").(*lua.LFunction); !ok || fn == nil {
		return nil, fmt.Errorf("keyword script %s must define a filter(words) function", path)
	}
	return hook, nil
}

// Filter passes words through the script. A fresh state per call keeps runs
// independent.
func (h *Hook) Filter(ctx context.Context, words []string) ([]string, error) {
	L := h.newState()
	defer L.Close()
	L.SetContext(ctx)
	if err := L.DoString(h.source); err != nil {
		return nil, fmt.Errorf("load keyword script %s: %w", h.path, err)
	}
	input := L.NewTable()
	for _, word := range words {
		input.Append(lua.LString(word))
	}
	if err := L.CallByParam(lua.P{Fn: L.GetGlobal("filter"), NRet: 1, Protect: true}, input); err != nil {
		return nil, fmt.Errorf("keyword script %s: %w", h.path, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	table, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("keyword script %s: filter returned %s, want table", h.path, ret.Type())
	}
	out := make([]string, 0, table.Len())
	var convErr error
	table.ForEach(func(_, value lua.LValue) {
		if convErr != nil {
			return
		}
		str, ok := value.(lua.LString)
		if !ok {
			convErr = fmt.Errorf("keyword script %s: filter returned non-string %s", h.path, value.Type())
			return
		}
		out = append(out, string(str))
	})
	if convErr != nil {
		return nil, convErr
	}
	return out, nil
}

func (h *Hook) newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.TabLibName, lua.OpenTable},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
