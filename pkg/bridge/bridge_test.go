package bridge

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tilebridge/pkg/logger"
	"tilebridge/pkg/state"
)

// forEachBackend runs fn against a fresh bridge on every in-process backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, b *Bridge)) {
	t.Helper()

	open := map[string]func(t *testing.T) state.KV{
		"memory": func(t *testing.T) state.KV { return state.NewMemoryStore() },
		"file": func(t *testing.T) state.KV {
			kv, err := state.NewFileStore(logger.NewNop(), &state.FileStoreConfig{
				FilePath: filepath.Join(t.TempDir(), "state.json"),
			})
			if err != nil {
				t.Fatalf("NewFileStore: %v", err)
			}
			return kv
		},
		"sqlite": func(t *testing.T) state.KV {
			kv, err := state.NewSQLiteStore(context.Background(), logger.NewNop(), filepath.Join(t.TempDir(), "state.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			return kv
		},
		"redis": func(t *testing.T) state.KV {
			mr := miniredis.RunT(t)
			kv, err := state.NewRedisStore(context.Background(), logger.NewNop(), &state.RedisStoreConfig{Addr: mr.Addr()})
			if err != nil {
				t.Fatalf("NewRedisStore: %v", err)
			}
			return kv
		},
	}

	for name, openKV := range open {
		t.Run(name, func(t *testing.T) {
			kv := openKV(t)
			t.Cleanup(func() { _ = kv.Close() })

			b, err := New(Options{KV: kv})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			fn(t, b)
		})
	}
}

func TestUnwrittenKeysReadEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b *Bridge) {
		if got := b.GetWindowState("never"); got != "" {
			t.Errorf("window state = %q, want empty", got)
		}
		if got := b.GetLayoutState("never"); got != "" {
			t.Errorf("layout state = %q, want empty", got)
		}
		if got := b.GetWindowList(); got != "" {
			t.Errorf("window list = %q, want empty", got)
		}
	})
}

func TestLastWriteWins(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b *Bridge) {
		b.PutWindowState("k", "v1")
		b.PutWindowState("k", "v2")
		if got := b.GetWindowState("k"); got != "v2" {
			t.Errorf("window state = %q, want v2", got)
		}

		b.PutLayoutState("k", "l1")
		b.PutLayoutState("k", "l2")
		if got := b.GetLayoutState("k"); got != "l2" {
			t.Errorf("layout state = %q, want l2", got)
		}
	})
}

func TestSamePutTwiceIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b *Bridge) {
		b.PutLayoutState("desk1", "tile")
		b.PutLayoutState("desk1", "tile")
		if got := b.GetLayoutState("desk1"); got != "tile" {
			t.Errorf("layout state = %q, want tile", got)
		}
	})
}

func TestNamespaceIsolation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b *Bridge) {
		b.PutWindowState("a", "x")
		if got := b.GetLayoutState("a"); got != "" {
			t.Errorf("layout state leaked window write: %q", got)
		}

		b.PutLayoutState("b", "y")
		if got := b.GetWindowState("b"); got != "" {
			t.Errorf("window state leaked layout write: %q", got)
		}

		// The window list and surface cells live in their own namespaces too.
		b.PutWindowState("list", "not the list")
		if got := b.GetWindowList(); got != "" {
			t.Errorf("window list leaked window state: %q", got)
		}
		b.PutWindowState("1:0", "7")
		if got := b.GetSurfaceGroup(1, 0); got != NoSurfaceGroup {
			t.Errorf("surface cell leaked window state: %d", got)
		}
	})
}

func TestValuesPreservedByteForByte(t *testing.T) {
	values := []string{
		"",
		"100,200,800,600",
		`{"floating":true,"geometry":[1,2,3,4]}`,
		"line1\nline2\ttab",
		"unicode ✓ ウィンドウ",
		"  padded  ",
		"geom\xff\xfe",
		"a\x00b",
	}
	forEachBackend(t, func(t *testing.T, b *Bridge) {
		for i, v := range values {
			key := string(rune('a' + i))
			b.PutWindowState(key, v)
			if got := b.GetWindowState(key); got != v {
				t.Errorf("value %d = %q, want %q", i, got, v)
			}
		}
	})
}

func TestUnsetSurfaceCellsReturnSentinel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b *Bridge) {
		for _, cell := range [][2]int{{1, 0}, {0, 0}, {42, 7}, {-3, -1}} {
			if got := b.GetSurfaceGroup(cell[0], cell[1]); got != NoSurfaceGroup {
				t.Errorf("GetSurfaceGroup%v = %d, want %d", cell, got, NoSurfaceGroup)
			}
		}
	})
}

func TestSurfaceGroupSetGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b *Bridge) {
		b.SetSurfaceGroup(1, 0, 0)
		if got := b.GetSurfaceGroup(1, 0); got != 0 {
			t.Errorf("group 0 must be distinct from unset, got %d", got)
		}

		b.SetSurfaceGroup(1, 0, 5)
		b.SetSurfaceGroup(2, 0, 9)
		if a, c := b.GetSurfaceGroup(1, 0), b.GetSurfaceGroup(2, 0); a != 5 || c != 9 {
			t.Errorf("cells (1,0)=%d (2,0)=%d, want 5 and 9", a, c)
		}
		if got := b.GetSurfaceGroup(0, 1); got != NoSurfaceGroup {
			t.Errorf("(0,1) must not alias (1,0), got %d", got)
		}
	})
}

func TestWindowListFullReplace(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b *Bridge) {
		b.PutWindowList("a,b")
		b.PutWindowList("c")
		if got := b.GetWindowList(); got != "c" {
			t.Errorf("window list = %q, want c", got)
		}
	})
}

func TestScenarioWindowGeometry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b *Bridge) {
		if got := b.GetWindowState("geom"); got != "" {
			t.Fatalf("initial geom = %q", got)
		}
		b.PutWindowState("geom", "100,200,800,600")
		if got := b.GetWindowState("geom"); got != "100,200,800,600" {
			t.Fatalf("geom = %q", got)
		}
	})
}

func TestScenarioSurfaceGroup(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b *Bridge) {
		if got := b.GetSurfaceGroup(1, 0); got != -1 {
			t.Fatalf("initial group = %d", got)
		}
		b.SetSurfaceGroup(1, 0, 3)
		if got := b.GetSurfaceGroup(1, 0); got != 3 {
			t.Fatalf("group = %d, want 3", got)
		}
		if got := b.GetSurfaceGroup(1, 1); got != -1 {
			t.Fatalf("neighbour group = %d, want -1", got)
		}
	})
}

func TestSettingSentinelUnassignsCell(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b *Bridge) {
		b.SetSurfaceGroup(1, 0, 4)
		b.SetSurfaceGroup(1, 0, NoSurfaceGroup)
		if got := b.GetSurfaceGroup(1, 0); got != NoSurfaceGroup {
			t.Fatalf("group = %d, want %d", got, NoSurfaceGroup)
		}

		if _, err := b.Call(context.Background(), MethodSetSurfaceGroup, []any{2, 0, -1}); err != nil {
			t.Fatalf("Call: %v", err)
		}
		if got := b.GetSurfaceGroup(2, 0); got != NoSurfaceGroup {
			t.Fatalf("group via Call = %d, want %d", got, NoSurfaceGroup)
		}
	})
}

func TestStatePersistsAcrossBridges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	open := func() (*Bridge, state.KV) {
		kv, err := state.NewFileStore(logger.NewNop(), &state.FileStoreConfig{FilePath: path})
		if err != nil {
			t.Fatalf("NewFileStore: %v", err)
		}
		b, err := New(Options{KV: kv})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return b, kv
	}

	b, kv := open()
	b.PutLayoutState("desk", "monocle")
	b.PutWindowState("w1", "geom\xff\xfe")
	b.SetSurfaceGroup(2, 1, 4)
	_ = kv.Close()

	b, kv = open()
	defer kv.Close()
	if got := b.GetLayoutState("desk"); got != "monocle" {
		t.Errorf("layout after reopen = %q", got)
	}
	if got := b.GetWindowState("w1"); got != "geom\xff\xfe" {
		t.Errorf("binary window state after reopen = %q", got)
	}
	if got := b.GetSurfaceGroup(2, 1); got != 4 {
		t.Errorf("group after reopen = %d", got)
	}
}

func TestUnparsableSurfaceValueReadsAsSentinel(t *testing.T) {
	kv := state.NewMemoryStore()
	core, logs := observer.New(zapcore.WarnLevel)
	b, _ := New(Options{KV: kv, Log: &logger.Logger{Logger: zap.New(core)}})

	_ = kv.Set(context.Background(), "surface:1:0", "garbage")
	if got := b.GetSurfaceGroup(1, 0); got != NoSurfaceGroup {
		t.Fatalf("group = %d, want sentinel", got)
	}
	if logs.FilterMessage("Ignoring unparsable surface group").Len() != 1 {
		t.Fatal("expected a warning for the corrupt cell")
	}
}

type brokenKV struct{}

var errBackend = errors.New("backend down")

func (brokenKV) Get(context.Context, string) (string, bool, error) { return "stale", true, errBackend }
func (brokenKV) Set(context.Context, string, string) error         { return errBackend }
func (brokenKV) Delete(context.Context, string) error              { return errBackend }
func (brokenKV) Keys(context.Context) ([]string, error)            { return nil, errBackend }
func (brokenKV) Exists(context.Context, string) (bool, error)      { return false, errBackend }
func (brokenKV) Clear(context.Context) error                       { return errBackend }
func (brokenKV) GetAll(context.Context) (map[string]string, error) { return nil, errBackend }
func (brokenKV) Close() error                                      { return nil }

func TestBackendFailuresResolveToDefaults(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	b, err := New(Options{KV: brokenKV{}, Log: &logger.Logger{Logger: zap.New(core)}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b.PutWindowState("k", "v")
	if got := b.GetWindowState("k"); got != "" {
		t.Errorf("window state = %q, want empty on failure", got)
	}
	if got := b.GetLayoutState("k"); got != "" {
		t.Errorf("layout state = %q, want empty on failure", got)
	}
	b.PutWindowList("[]")
	if got := b.GetWindowList(); got != "" {
		t.Errorf("window list = %q, want empty on failure", got)
	}
	b.SetSurfaceGroup(1, 0, 2)
	if got := b.GetSurfaceGroup(1, 0); got != NoSurfaceGroup {
		t.Errorf("group = %d, want sentinel on failure", got)
	}

	if logs.Len() != 7 {
		t.Errorf("expected 7 logged failures, got %d", logs.Len())
	}
}

func TestComponentErrorsWrapBackend(t *testing.T) {
	ctx := context.Background()
	store, _ := NewKeyedStateStore(brokenKV{}, NamespaceWindow)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, errBackend) {
		t.Errorf("Get error = %v", err)
	}
	if err := NewWindowListRegistry(brokenKV{}).Put(ctx, "x"); !errors.Is(err, errBackend) {
		t.Errorf("Put error = %v", err)
	}
	if _, err := NewSurfaceGroupIndex(brokenKV{}, nil).Get(ctx, 1, 0); !errors.Is(err, errBackend) {
		t.Errorf("surface Get error = %v", err)
	}
}

func TestKeyedStoreRejectsOtherNamespaces(t *testing.T) {
	for _, ns := range []Namespace{NamespaceSurface, NamespaceWindowList, "bogus", ""} {
		if _, err := NewKeyedStateStore(state.NewMemoryStore(), ns); !errors.Is(err, ErrUnknownNamespace) {
			t.Errorf("namespace %q: err = %v, want ErrUnknownNamespace", ns, err)
		}
	}
}

func TestParseNamespace(t *testing.T) {
	if ns, err := ParseNamespace("layout"); err != nil || ns != NamespaceLayout {
		t.Fatalf("ParseNamespace(layout) = %q, %v", ns, err)
	}
	if _, err := ParseNamespace("Layout"); !errors.Is(err, ErrUnknownNamespace) {
		t.Fatalf("expected ErrUnknownNamespace, got %v", err)
	}
}

func TestWindowListHelpers(t *testing.T) {
	enc, err := EncodeWindowList([]string{"0x1", "0x2"})
	if err != nil {
		t.Fatal(err)
	}
	if enc != `["0x1","0x2"]` {
		t.Fatalf("encoded = %s", enc)
	}

	ids, err := DecodeWindowList(enc)
	if err != nil || len(ids) != 2 || ids[1] != "0x2" {
		t.Fatalf("decoded = %v, %v", ids, err)
	}

	if enc, _ := EncodeWindowList(nil); enc != "[]" {
		t.Fatalf("nil encodes as %s", enc)
	}
	if ids, err := DecodeWindowList(""); err != nil || len(ids) != 0 {
		t.Fatalf("empty decodes as %v, %v", ids, err)
	}
	if _, err := DecodeWindowList("a,b"); err == nil {
		t.Fatal("expected error for non-JSON list")
	}
}
