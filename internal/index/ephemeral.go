package index

import (
	"fmt"
	"os"

	"chatmate.app/chatmate/internal/logger"
)

// WriteFile serializes ix to path, truncating any existing file.
func WriteFile(path string, ix *Flat) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if _, err := ix.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return f.Close()
}

func ReadFile(path string) (*Flat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// SearchEphemeral builds an index over vectors, writes it to a uniquely named file
// in dir (the OS temp dir when empty), reloads it and queries the reloaded copy.
// The file is removed before returning, on success or failure.
func SearchEphemeral(dir string, vectors [][]float32, query []float32, k int) ([]Hit, error) {
	built, err := Build(vectors)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(dir, "chatmate-index-*.cmix")
	if err != nil {
		return nil, fmt.Errorf("failed to create index file: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warnf("Failed to remove index file %s: %v", path, err)
		}
	}()

	if _, err := built.WriteTo(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write index file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close index file: %w", err)
	}

	loaded, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return loaded.Search(query, k)
}
