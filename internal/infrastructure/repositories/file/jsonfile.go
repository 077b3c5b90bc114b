package file

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	NotificationsFile = "notifications.json"
	PreferencesFile   = "notification-preferences.json"
)

// ErrUnreadableFile is returned by writes while the data file on disk cannot
// be decoded. Writing would replace records this process never saw.
var ErrUnreadableFile = errors.New("data file is unreadable, refusing to overwrite it")

type digest [sha256.Size]byte

// readFile returns the contents of path and their digest. A missing file reads
// as empty.
func readFile(path string) ([]byte, digest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, sha256.Sum256(nil), nil
	}
	if err != nil {
		return nil, digest{}, fmt.Errorf("read %s: %w", path, err)
	}
	return data, sha256.Sum256(data), nil
}

// decodeJSON decodes data into v. Empty data leaves v untouched.
func decodeJSON(path string, data []byte, v interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// encodeJSON indents by two spaces and leaves <, > and & unescaped, the way
// the other writers of these files do.
func encodeJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// writeJSON replaces path atomically: readers and the watcher never see a
// partially written file.
func writeJSON(path string, v interface{}) (digest, error) {
	data, err := encodeJSON(v)
	if err != nil {
		return digest{}, fmt.Errorf("encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return digest{}, fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return digest{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return digest{}, fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return digest{}, fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return digest{}, fmt.Errorf("replace %s: %w", path, err)
	}
	return sha256.Sum256(data), nil
}
