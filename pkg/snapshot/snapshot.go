// Package snapshot exports bridge state to JSON files and restores it, on
// demand or on a cron schedule.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"tilebridge/pkg/bridge"
	"tilebridge/pkg/fileutil"
	"tilebridge/pkg/state"
)

// FormatVersion is written into every snapshot file. Version 1 files held
// values as JSON strings; version 2 stores base64 bytes so binary state
// survives the round trip. Both are readable.
const FormatVersion = 2

// Snapshot is a point-in-time copy of every bridge namespace.
type Snapshot struct {
	Version    int
	CreatedAt  time.Time
	Namespaces map[string]map[string]string
}

type fileEntry struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

type fileSnapshot struct {
	Version    int             `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	Namespaces json.RawMessage `json:"namespaces"`
}

// MarshalJSON writes the current file format.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	namespaces := make(map[string][]fileEntry, len(s.Namespaces))
	for name, entries := range s.Namespaces {
		list := make([]fileEntry, 0, len(entries))
		for _, k := range slices.Sorted(maps.Keys(entries)) {
			list = append(list, fileEntry{Key: []byte(k), Value: []byte(entries[k])})
		}
		namespaces[name] = list
	}
	raw, err := json.Marshal(namespaces)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fileSnapshot{Version: FormatVersion, CreatedAt: s.CreatedAt, Namespaces: raw})
}

// UnmarshalJSON reads any supported file format.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var f fileSnapshot
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	s.Version = f.Version
	s.CreatedAt = f.CreatedAt
	s.Namespaces = map[string]map[string]string{}
	if len(f.Namespaces) == 0 || string(f.Namespaces) == "null" {
		return nil
	}

	switch f.Version {
	case 1:
		return json.Unmarshal(f.Namespaces, &s.Namespaces)
	case FormatVersion:
		var namespaces map[string][]fileEntry
		if err := json.Unmarshal(f.Namespaces, &namespaces); err != nil {
			return err
		}
		for name, list := range namespaces {
			entries := make(map[string]string, len(list))
			for _, e := range list {
				entries[string(e.Key)] = string(e.Value)
			}
			s.Namespaces[name] = entries
		}
		return nil
	default:
		return fmt.Errorf("unsupported snapshot version %d", f.Version)
	}
}

// Keys counts the entries across all namespaces.
func (s *Snapshot) Keys() int {
	n := 0
	for _, entries := range s.Namespaces {
		n += len(entries)
	}
	return n
}

// Export reads every bridge namespace from kv.
func Export(ctx context.Context, kv state.KV) (*Snapshot, error) {
	snap := &Snapshot{
		Version:    FormatVersion,
		CreatedAt:  time.Now().UTC(),
		Namespaces: make(map[string]map[string]string, len(bridge.Namespaces)),
	}
	for _, ns := range bridge.Namespaces {
		entries, err := state.Namespaced(kv, string(ns)).GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("exporting %s: %w", ns, err)
		}
		snap.Namespaces[string(ns)] = entries
	}
	return snap, nil
}

// Restore writes snap into kv. With replace set, each namespace present in
// the snapshot is cleared first; otherwise entries are merged over what is
// already stored.
func Restore(ctx context.Context, kv state.KV, snap *Snapshot, replace bool) error {
	if snap.Version < 1 || snap.Version > FormatVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	for name := range snap.Namespaces {
		if _, err := bridge.ParseNamespace(name); err != nil {
			return err
		}
	}

	for name, entries := range snap.Namespaces {
		view := state.Namespaced(kv, name)
		if replace {
			if err := view.Clear(ctx); err != nil {
				return fmt.Errorf("clearing %s: %w", name, err)
			}
		}
		for k, v := range entries {
			if err := view.Set(ctx, k, v); err != nil {
				return fmt.Errorf("restoring %s/%s: %w", name, k, err)
			}
		}
	}
	return nil
}

// WriteFile stores snap at path atomically.
func WriteFile(path string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// ReadFile loads a snapshot written by WriteFile.
func ReadFile(path string) (*Snapshot, error) {
	data, ok, err := fileutil.ReadFileIfExists(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("snapshot not found: %s", path)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}
