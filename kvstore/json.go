package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// JSONFile keeps every value in memory and rewrites the whole file on each
// Set. Values are held encoded so callers never share memory with the store.
type JSONFile[T any] struct {
	path string

	mu     sync.Mutex
	values map[string]json.RawMessage
}

// OpenJSONFile loads path if it exists. A missing file starts empty.
func OpenJSONFile[T any](path string) (*JSONFile[T], error) {
	j := &JSONFile[T]{
		path:   path,
		values: make(map[string]json.RawMessage),
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *JSONFile[T]) load() error {
	d, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(d) == 0 {
		return nil
	}
	if err := json.Unmarshal(d, &j.values); err != nil {
		return fmt.Errorf("failed to parse %v: %w", j.path, err)
	}
	return nil
}

// save writes to a temp file and renames it over the old one. Callers hold mu.
func (j *JSONFile[T]) save() error {
	d, err := json.MarshalIndent(j.values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return err
	}
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, d, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, j.path)
}

func (j *JSONFile[T]) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.save()
}

func (j *JSONFile[T]) Get(_ context.Context, key string) (*T, error) {
	j.mu.Lock()
	raw, ok := j.values[key]
	j.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %v: %w", key, err)
	}
	return &v, nil
}

func (j *JSONFile[T]) Set(_ context.Context, key string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %v: %w", key, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.values[key] = raw
	return j.save()
}

func (j *JSONFile[T]) Has(_ context.Context, key string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.values[key]
	return ok, nil
}

func (j *JSONFile[T]) Delete(_ context.Context, key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.values[key]; !ok {
		return nil
	}
	delete(j.values, key)
	return j.save()
}

func (j *JSONFile[T]) Keys(_ context.Context, prefix string) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var keys []string
	for k := range j.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
