package helper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return id.String(), nil
}

// create folder and parents if missing
func CreateFolder(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReplaceFile lets write produce a temporary sibling of path, then renames
// it over path. The temporary name ends with the base name of path. An
// existing file at path is left untouched when write fails.
func ReplaceFile(path string, write func(tmpPath string) error) (err error) {
	dir := filepath.Dir(path)
	if err := CreateFolder(dir); err != nil {
		return err
	}

	id, err := GenerateUUID()
	if err != nil {
		return err
	}
	tmpPath := filepath.Join(dir, "."+id+"."+filepath.Base(path))
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if err = write(tmpPath); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmpPath, err)
	}
	return nil
}

// WriteFileAtomic is ReplaceFile for callers that stream into an open file.
func WriteFileAtomic(path string, fn func(f *os.File) error) error {
	return ReplaceFile(path, func(tmpPath string) error {
		f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return fmt.Errorf("failed to create temp file: %w", err)
		}
		if err := fn(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
		}
		return f.Close()
	})
}

// WriteJSONAtomic stores v as indented JSON at path.
func WriteJSONAtomic(path string, v interface{}) error {
	return WriteFileAtomic(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	})
}

// pretty print
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Msg("Error pretty printing")
	}
	fmt.Println(string(b))
}
