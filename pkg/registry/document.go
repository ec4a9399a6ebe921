package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/dbcollection/pkg/fs"
)

// FileName is the registry file name inside the user's home directory.
const FileName = ".dbcollection.json"

// DirName is the default directory for dataset caches and data inside the
// user's home directory.
const DirName = "dbcollection"

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// Document is the full registry as stored on disk.
type Document struct {
	Info    Info                          `json:"info"`
	Dataset map[string]map[string]*Record `json:"dataset"`
}

// Info holds the process-wide defaults written when the registry is created.
type Info struct {
	DefaultCacheDir string `json:"default_cache_dir"`
	DefaultDataDir  string `json:"default_data_dir"`
}

// Record is the storage metadata of one dataset.
type Record struct {
	DataDir    string            `json:"data_dir"`
	CacheDir   string            `json:"cache_dir"`
	CacheFiles map[string]string `json:"cache_files"`
}

// Paths are the resolved storage locations of a dataset.
type Paths struct {
	CacheDir string `json:"cache_dir"`
	DataDir  string `json:"data_dir"`
}

// DefaultPath returns the registry file location for the given home directory.
func DefaultPath(home string) string {
	return filepath.Join(home, FileName)
}

// DefaultInfo returns the default cache and data directories for the given
// home directory. Both point at the same directory.
func DefaultInfo(home string) Info {
	dir := filepath.Join(home, DirName)

	return Info{
		DefaultCacheDir: dir,
		DefaultDataDir:  dir,
	}
}

// NewDocument returns an empty document seeded with defaults.
func NewDocument(defaults Info) *Document {
	return &Document{
		Info:    defaults,
		Dataset: make(map[string]map[string]*Record),
	}
}

// Load reads the registry document at path.
//
// If the file does not exist, Load returns a fresh document seeded with
// defaults and loaded=false. The file is parsed as JSONC, so comments and
// trailing commas written by hand are accepted.
//
// Possible errors: I/O errors from fsys (wrapped), [ErrInvalidDocument].
func Load(fsys fs.FS, path string, defaults Info) (*Document, bool, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDocument(defaults), false, nil
		}

		return nil, false, fmt.Errorf("read registry %s: %w", path, err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, false, fmt.Errorf("%w %s: %w", ErrInvalidDocument, path, err)
	}

	return doc, true, nil
}

// Persist replaces the file at path with the encoded document.
//
// The whole document is written on every call. There is no partial-write
// recovery; a failed Persist leaves the previous file in place.
func Persist(fsys fs.FS, doc *Document, path string) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	writeErr := fsys.WriteFileAtomic(path, data, filePerm)
	if writeErr != nil {
		return fmt.Errorf("write registry %s: %w", path, writeErr)
	}

	return nil
}

func decodeDocument(data []byte) (*Document, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONC: %w", err)
	}

	var doc Document

	unmarshalErr := json.Unmarshal(standardized, &doc)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	if doc.Dataset == nil {
		doc.Dataset = make(map[string]map[string]*Record)
	}

	for category, datasets := range doc.Dataset {
		if datasets == nil {
			doc.Dataset[category] = make(map[string]*Record)

			continue
		}

		for name, rec := range datasets {
			if rec == nil {
				return nil, fmt.Errorf("dataset %q in category %q is null", name, category)
			}

			if rec.CacheFiles == nil {
				rec.CacheFiles = make(map[string]string)
			}
		}
	}

	return &doc, nil
}

func encodeDocument(doc *Document) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	err := enc.Encode(doc)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := NewDocument(d.Info)

	for category, datasets := range d.Dataset {
		copied := make(map[string]*Record, len(datasets))
		for name, rec := range datasets {
			clone := rec.Clone()
			copied[name] = &clone
		}

		out.Dataset[category] = copied
	}

	return out
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	files := make(map[string]string, len(r.CacheFiles))
	for task, path := range r.CacheFiles {
		files[task] = path
	}

	r.CacheFiles = files

	return r
}
