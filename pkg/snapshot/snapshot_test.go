package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tilebridge/pkg/bridge"
	"tilebridge/pkg/logger"
	"tilebridge/pkg/state"
)

func seededKV(t *testing.T) state.KV {
	t.Helper()
	kv := state.NewMemoryStore()
	b, err := bridge.New(bridge.Options{KV: kv})
	if err != nil {
		t.Fatalf("bridge.New: %v", err)
	}
	b.PutWindowState("w1", "floating")
	b.PutLayoutState("desk1", "tile")
	b.PutWindowList(`["w1"]`)
	b.SetSurfaceGroup(1, 0, 2)
	return kv
}

func TestExportRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seededKV(t)
	_ = src.Set(ctx, "unrelated", "x")

	snap, err := Export(ctx, src)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if snap.Keys() != 4 {
		t.Fatalf("expected 4 keys, got %d", snap.Keys())
	}
	if snap.Namespaces["surface"]["1:0"] != "2" {
		t.Fatalf("surface cell missing: %v", snap.Namespaces["surface"])
	}

	path := filepath.Join(t.TempDir(), "snap", "state.json")
	if err := WriteFile(path, snap); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	loaded, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	dst := state.NewMemoryStore()
	if err := Restore(ctx, dst, loaded, true); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	b, _ := bridge.New(bridge.Options{KV: dst})
	if b.GetWindowState("w1") != "floating" || b.GetLayoutState("desk1") != "tile" {
		t.Fatal("keyed state not restored")
	}
	if b.GetSurfaceGroup(1, 0) != 2 || b.GetWindowList() != `["w1"]` {
		t.Fatal("surface or window list not restored")
	}
	if ok, _ := dst.Exists(ctx, "unrelated"); ok {
		t.Fatal("keys outside bridge namespaces must not be exported")
	}
}

func TestRestoreReplaceVersusMerge(t *testing.T) {
	ctx := context.Background()
	snap := &Snapshot{
		Version:    FormatVersion,
		Namespaces: map[string]map[string]string{"window": {"a": "1"}},
	}

	kv := state.NewMemoryStore()
	_ = kv.Set(ctx, "window:old", "x")
	_ = kv.Set(ctx, "layout:keep", "y")

	if err := Restore(ctx, kv, snap, false); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if ok, _ := kv.Exists(ctx, "window:old"); !ok {
		t.Fatal("merge must keep existing keys")
	}

	if err := Restore(ctx, kv, snap, true); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if ok, _ := kv.Exists(ctx, "window:old"); ok {
		t.Fatal("replace must clear the namespace")
	}
	if ok, _ := kv.Exists(ctx, "layout:keep"); !ok {
		t.Fatal("replace must not touch namespaces absent from the snapshot")
	}
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemoryStore()

	if err := Restore(ctx, kv, &Snapshot{Version: 99}, false); err == nil {
		t.Error("expected version error")
	}
	bad := &Snapshot{Version: FormatVersion, Namespaces: map[string]map[string]string{"secrets": {"a": "b"}}}
	if err := Restore(ctx, kv, bad, false); err == nil {
		t.Error("expected unknown namespace error")
	}
	if keys, _ := kv.Keys(ctx); len(keys) != 0 {
		t.Errorf("failed restore wrote keys: %v", keys)
	}
}

func TestReadFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := ReadFile(filepath.Join(dir, "missing.json")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing file error = %v", err)
	}
	path := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(path, []byte("nope"), 0o600)
	if _, err := ReadFile(path); err == nil {
		t.Error("expected error for malformed snapshot")
	}
}

func TestSnapshotFileKeepsBinaryValues(t *testing.T) {
	ctx := context.Background()
	src := state.NewMemoryStore()
	_ = src.Set(ctx, "window:w1", "geom\xff\xfe")
	_ = src.Set(ctx, "layout:\xc3", "a\x00b")

	snap, err := Export(ctx, src)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	path := filepath.Join(t.TempDir(), "state.json")
	if err := WriteFile(path, snap); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	loaded, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if loaded.Version != FormatVersion {
		t.Errorf("version = %d, want %d", loaded.Version, FormatVersion)
	}

	dst := state.NewMemoryStore()
	if err := Restore(ctx, dst, loaded, true); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if v, _, _ := dst.Get(ctx, "window:w1"); v != "geom\xff\xfe" {
		t.Errorf("window:w1 = %q", v)
	}
	if v, _, _ := dst.Get(ctx, "layout:\xc3"); v != "a\x00b" {
		t.Errorf("layout key = %q", v)
	}
}

func TestReadFileAcceptsVersionOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v1.json")
	body := `{"version":1,"created_at":"2024-01-01T00:00:00Z","namespaces":{"window":{"w1":"tile"}}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	snap, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	kv := state.NewMemoryStore()
	if err := Restore(context.Background(), kv, snap, false); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if v, _, _ := kv.Get(context.Background(), "window:w1"); v != "tile" {
		t.Errorf("window:w1 = %q", v)
	}
}

func TestReadFileRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v9.json")
	_ = os.WriteFile(path, []byte(`{"version":9,"namespaces":{"window":[]}}`), 0o600)
	if _, err := ReadFile(path); err == nil {
		t.Error("expected unsupported version error")
	}
}

func TestNewSchedulerValidates(t *testing.T) {
	kv := state.NewMemoryStore()
	if _, err := NewScheduler(logger.NewNop(), kv, "every tuesday", "/tmp/x.json"); err == nil {
		t.Error("expected invalid schedule error")
	}
	if _, err := NewScheduler(logger.NewNop(), kv, "@every 1m", ""); err == nil {
		t.Error("expected missing path error")
	}
}

func TestSchedulerRunNowAndStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewScheduler(logger.NewNop(), seededKV(t), "@every 1h", path)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if next := s.Status().NextRun; next.IsZero() || next.Before(time.Now()) {
		t.Errorf("next run not scheduled: %v", next)
	}

	if err := s.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	st := s.Status()
	if st.RunCount != 1 || st.LastError != "" || st.LastRun.IsZero() {
		t.Errorf("unexpected status %+v", st)
	}

	snap, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if snap.Namespaces["window"]["w1"] != "floating" {
		t.Error("scheduled snapshot missing window state")
	}
}
