// Package manifest persists the index's per-file bookkeeping — last
// modified time, chunk count, content hash — to a single JSON file, plus a
// header recording the hash algorithm, schema version, and the VCS state
// the manifest was last saved against.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"

	amerrors "github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/vcs"
)

// CurrentVersion is the manifest schema version written by this build.
const CurrentVersion = 1

// HashAlgorithm identifies the content-hash scheme entries are hashed with.
const HashAlgorithm = "sha256-16"

// Entry is one file's bookkeeping record.
type Entry struct {
	LastModified int64  `json:"last_modified"`
	ChunkCount   int    `json:"chunk_count"`
	ContentHash  string `json:"content_hash,omitempty"`
}

// Manifest is the full on-disk state: a header plus one Entry per tracked
// file, keyed by canonical relative path.
type Manifest struct {
	HashAlgorithm string         `json:"hash_algorithm"`
	Version       int            `json:"version"`
	VCSState      *vcs.State     `json:"vcs_state,omitempty"`
	Files         map[string]*Entry `json:"files"`
}

// New returns an empty manifest at the current schema version.
func New() *Manifest {
	return &Manifest{
		HashAlgorithm: HashAlgorithm,
		Version:       CurrentVersion,
		Files:         make(map[string]*Entry),
	}
}

// Load reads the manifest at path. A missing file is not an error — it
// returns (nil, nil) so callers can distinguish "no manifest yet" (full
// index) from a read/parse failure.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, amerrors.IOError("failed to read manifest", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, amerrors.ParseError("failed to parse manifest", err)
	}
	if m.Files == nil {
		m.Files = make(map[string]*Entry)
	}
	return &m, nil
}

// Save writes m to path atomically: it serializes to a temp file in the
// same directory, then renames over the destination, so a concurrent
// reader never observes a partially written manifest.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return amerrors.InternalError("failed to marshal manifest", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return amerrors.IOError("failed to create manifest temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return amerrors.IOError("failed to write manifest temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return amerrors.IOError("failed to close manifest temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return amerrors.IOError("failed to finalize manifest", err)
	}
	return nil
}

// Upsert records or replaces the entry for path.
func (m *Manifest) Upsert(path string, entry *Entry) {
	if m.Files == nil {
		m.Files = make(map[string]*Entry)
	}
	m.Files[path] = entry
}

// Remove deletes path's entry, if any.
func (m *Manifest) Remove(path string) {
	delete(m.Files, path)
}
