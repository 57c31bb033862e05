package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	// ErrUnknownMethod is returned by Call for a name not on the call surface.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrBadArguments is returned by Call for wrong arity or argument types.
	ErrBadArguments = errors.New("bad arguments")
)

// Script-facing method names.
const (
	MethodGetWindowState   = "getWindowState"
	MethodPutWindowState   = "putWindowState"
	MethodGetLayoutState   = "getLayoutState"
	MethodPutLayoutState   = "putLayoutState"
	MethodGetWindowList    = "getWindowList"
	MethodPutWindowList    = "putWindowList"
	MethodGetSurfaceGroup  = "getSurfaceGroup"
	MethodSetSurfaceGroup  = "setSurfaceGroup"
	MethodRegisterShortcut = "registerShortcut"
	MethodLog              = "log"
	MethodJSConfig         = "jsConfig"
)

// Methods returns the call surface, sorted.
func Methods() []string {
	m := []string{
		MethodGetWindowState, MethodPutWindowState,
		MethodGetLayoutState, MethodPutLayoutState,
		MethodGetWindowList, MethodPutWindowList,
		MethodGetSurfaceGroup, MethodSetSurfaceGroup,
		MethodRegisterShortcut, MethodLog, MethodJSConfig,
	}
	slices.Sort(m)
	return m
}

// Call dispatches a loosely typed call by script method name. Numeric
// arguments may arrive as float64 (decoded JSON) but must be integral.
// Methods with no result return nil.
func (b *Bridge) Call(ctx context.Context, method string, args []any) (any, error) {
	switch method {
	case MethodGetWindowState, MethodGetLayoutState:
		key, err := stringArgs1(method, args)
		if err != nil {
			return nil, err
		}
		return b.getState(ctx, b.keyedFor(method), key), nil

	case MethodPutWindowState, MethodPutLayoutState:
		if err := arity(method, args, 2); err != nil {
			return nil, err
		}
		key, err := stringArg(method, args, 0)
		if err != nil {
			return nil, err
		}
		value, err := stringArg(method, args, 1)
		if err != nil {
			return nil, err
		}
		b.putState(ctx, b.keyedFor(method), key, value)
		return nil, nil

	case MethodGetWindowList:
		if err := arity(method, args, 0); err != nil {
			return nil, err
		}
		return b.getWindowList(ctx), nil

	case MethodPutWindowList:
		list, err := stringArgs1(method, args)
		if err != nil {
			return nil, err
		}
		b.putWindowList(ctx, list)
		return nil, nil

	case MethodGetSurfaceGroup:
		ints, err := intArgs(method, args, 2)
		if err != nil {
			return nil, err
		}
		return b.getSurfaceGroup(ctx, ints[0], ints[1]), nil

	case MethodSetSurfaceGroup:
		ints, err := intArgs(method, args, 3)
		if err != nil {
			return nil, err
		}
		b.setSurfaceGroup(ctx, ints[0], ints[1], ints[2])
		return nil, nil

	case MethodRegisterShortcut:
		desc, err := ParseShortcutArgs(args)
		if err != nil {
			return nil, err
		}
		b.RegisterShortcut(desc)
		return nil, nil

	case MethodLog:
		if err := arity(method, args, 1); err != nil {
			return nil, err
		}
		b.Log(args[0])
		return nil, nil

	case MethodJSConfig:
		if err := arity(method, args, 0); err != nil {
			return nil, err
		}
		return b.JSConfig(), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
}

func (b *Bridge) keyedFor(method string) *KeyedStateStore {
	if method == MethodGetLayoutState || method == MethodPutLayoutState {
		return b.layouts
	}
	return b.windows
}

// ParseShortcutArgs reads registerShortcut arguments: id, description and
// default key binding. The callback is left for the transport to attach.
func ParseShortcutArgs(args []any) (ShortcutDescriptor, error) {
	if err := arity(MethodRegisterShortcut, args, 3); err != nil {
		return ShortcutDescriptor{}, err
	}
	var fields [3]string
	for i := range fields {
		s, err := stringArg(MethodRegisterShortcut, args, i)
		if err != nil {
			return ShortcutDescriptor{}, err
		}
		fields[i] = s
	}
	return ShortcutDescriptor{
		ID:                fields[0],
		Description:       fields[1],
		DefaultKeybinding: fields[2],
	}, nil
}

func arity(method string, args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s takes %d argument(s), got %d", ErrBadArguments, method, n, len(args))
	}
	return nil
}

func stringArgs1(method string, args []any) (string, error) {
	if err := arity(method, args, 1); err != nil {
		return "", err
	}
	return stringArg(method, args, 0)
}

func stringArg(method string, args []any, i int) (string, error) {
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s argument %d must be a string, got %T", ErrBadArguments, method, i, args[i])
	}
	return s, nil
}

func intArgs(method string, args []any, n int) ([]int, error) {
	if err := arity(method, args, n); err != nil {
		return nil, err
	}
	out := make([]int, n)
	for i, a := range args {
		v, ok := toInt(a)
		if !ok {
			return nil, fmt.Errorf("%w: %s argument %d must be an integer, got %v", ErrBadArguments, method, i, a)
		}
		out[i] = v
	}
	return out, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}
