package state

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"tilebridge/pkg/fileutil"
	"tilebridge/pkg/logger"
)

// FileStore is a JSON-file-backed key-value store. Writes land in memory
// first and reach disk immediately (AutoSave off) or on the next tick.
type FileStore struct {
	log      *logger.Logger
	filePath string
	data     map[string]string
	mu       sync.RWMutex
	// saveMu serializes Save so an older image never lands on disk after a newer one.
	saveMu sync.Mutex

	autoSave      bool
	saveInterval  time.Duration
	saveTicker    *time.Ticker
	stopSave      chan struct{}
	closeOnce     sync.Once

	// version counts writes; savedVersion is the last version on disk.
	version      uint64
	savedVersion uint64
}

// FileStoreConfig configures the file store.
type FileStoreConfig struct {
	FilePath     string        // Path to state file
	AutoSave     bool          // Flush on a ticker instead of on every write
	SaveInterval time.Duration // Auto-save interval (default: 5s)
}

// NewFileStore creates a file-based store, loading any existing file.
func NewFileStore(log *logger.Logger, cfg *FileStoreConfig) (*FileStore, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = 5 * time.Second
	}

	s := &FileStore{
		log:          log,
		filePath:     cfg.FilePath,
		data:         make(map[string]string),
		autoSave:     cfg.AutoSave,
		saveInterval: cfg.SaveInterval,
		stopSave:     make(chan struct{}),
	}

	if err := s.Load(); err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	if s.autoSave {
		s.startAutoSave()
	}

	return s, nil
}

// Get retrieves a value from the store.
func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	return value, ok, nil
}

// Set stores a value.
func (s *FileStore) Set(ctx context.Context, key string, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.version++
	s.mu.Unlock()

	if !s.autoSave {
		return s.Save()
	}
	return nil
}

// Delete removes a value.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	if _, ok := s.data[key]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.data, key)
	s.version++
	s.mu.Unlock()

	if !s.autoSave {
		return s.Save()
	}
	return nil
}

// Keys returns all keys in the store.
func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// Exists checks if a key exists.
func (s *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[key]
	return ok, nil
}

// Clear removes all data and saves immediately.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.data = make(map[string]string)
	s.version++
	s.mu.Unlock()

	return s.Save()
}

// GetAll returns a copy of all data.
func (s *FileStore) GetAll(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data), nil
}

// Load replaces the in-memory data with the file content. A missing file
// leaves the store empty.
func (s *FileStore) Load() error {
	raw, ok, err := fileutil.ReadFileIfExists(s.filePath)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	data := make(map[string]string)
	if len(raw) > 0 {
		if data, err = decodeStateFile(raw); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.data = data
	s.savedVersion = s.version
	s.mu.Unlock()

	s.log.Info("Loaded state", zap.String("file", s.filePath), zap.Int("keys", len(data)))
	return nil
}

// Save persists state to disk when there are unsaved writes.
func (s *FileStore) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	if s.version == s.savedVersion {
		s.mu.RUnlock()
		return nil
	}
	version := s.version
	data, err := encodeStateFile(s.data)
	keyCount := len(s.data)
	s.mu.RUnlock()

	if err != nil {
		return err
	}

	if err := fileutil.WriteFileAtomic(s.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}

	s.mu.Lock()
	s.savedVersion = version
	s.mu.Unlock()

	s.log.Debug("Saved state", zap.String("file", s.filePath), zap.Int("keys", keyCount))
	return nil
}

// stateFileVersion is the on-disk format. Version 2 stores keys and values
// as base64 bytes so arbitrary binary survives a reload; files without a
// version field are the original flat string map.
const stateFileVersion = 2

type stateFile struct {
	Version int              `json:"version"`
	Entries []stateFileEntry `json:"entries"`
}

type stateFileEntry struct {
	Key   []byte `json:"k"`
	Value []byte `json:"v"`
}

func encodeStateFile(data map[string]string) ([]byte, error) {
	image := stateFile{
		Version: stateFileVersion,
		Entries: make([]stateFileEntry, 0, len(data)),
	}
	for _, k := range slices.Sorted(maps.Keys(data)) {
		image.Entries = append(image.Entries, stateFileEntry{Key: []byte(k), Value: []byte(data[k])})
	}
	raw, err := json.MarshalIndent(image, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling state: %w", err)
	}
	return raw, nil
}

func decodeStateFile(raw []byte) (map[string]string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}

	var version int
	if v, ok := fields["version"]; ok && json.Unmarshal(v, &version) == nil && version > 0 {
		if version != stateFileVersion {
			return nil, fmt.Errorf("unsupported state file version %d", version)
		}
		var image stateFile
		if err := json.Unmarshal(raw, &image); err != nil {
			return nil, fmt.Errorf("unmarshaling state: %w", err)
		}
		data := make(map[string]string, len(image.Entries))
		for _, e := range image.Entries {
			data[string(e.Key)] = string(e.Value)
		}
		return data, nil
	}

	legacy := make(map[string]string)
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}
	return legacy, nil
}

func (s *FileStore) startAutoSave() {
	s.saveTicker = time.NewTicker(s.saveInterval)

	go func() {
		for {
			select {
			case <-s.saveTicker.C:
				if err := s.Save(); err != nil {
					s.log.Error("Auto-save failed", zap.Error(err))
				}
			case <-s.stopSave:
				return
			}
		}
	}()

	s.log.Debug("Started auto-save", zap.Duration("interval", s.saveInterval))
}

// Close stops auto-save and performs a final save.
func (s *FileStore) Close() error {
	s.closeOnce.Do(func() {
		if s.saveTicker != nil {
			s.saveTicker.Stop()
			close(s.stopSave)
		}
	})
	return s.Save()
}
