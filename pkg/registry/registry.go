package registry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/calvinalkan/dbcollection/pkg/fs"
)

// Record field names accepted by [Registry.Field] and [Registry.SetField].
const (
	FieldDataDir  = "data_dir"
	FieldCacheDir = "cache_dir"
)

// Options configures [Open].
type Options struct {
	// Path is the registry file. Required.
	Path string

	// Defaults seeds the info section when the registry file is created.
	// Ignored when the file already exists.
	Defaults Info

	// FS performs all file I/O. Nil means [fs.NewReal].
	FS fs.FS

	// Logger receives debug events. Nil discards them.
	Logger logrus.FieldLogger
}

// Registry is the in-memory view of a registry file.
//
// All mutations rewrite the whole file. A Registry is not safe for
// concurrent use, and concurrent processes writing the same file race with
// last-writer-wins semantics.
type Registry struct {
	path string
	fs   fs.FS
	log  logrus.FieldLogger
	doc  *Document
}

// Entry is one registered dataset, as returned by [Registry.Entries].
type Entry struct {
	Category string
	Name     string
	Record   Record
}

// Open loads the registry at opts.Path.
//
// On first run (the file does not exist) the fresh document is written to
// disk immediately, creating parent directories as needed, so that the
// defaults are fixed from then on.
func Open(opts Options) (*Registry, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: path is empty", ErrInvalidInput)
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	doc, loaded, err := Load(fsys, opts.Path, opts.Defaults)
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		path: opts.Path,
		fs:   fsys,
		log:  log.WithFields(logrus.Fields{"prefix": "registry", "path": opts.Path}),
		doc:  doc,
	}

	if loaded {
		reg.log.WithField("datasets", len(reg.Entries())).Debug("loaded registry")

		return reg, nil
	}

	mkdirErr := fsys.MkdirAll(filepath.Dir(opts.Path), dirPerm)
	if mkdirErr != nil {
		return nil, fmt.Errorf("create registry dir: %w", mkdirErr)
	}

	saveErr := reg.Save()
	if saveErr != nil {
		return nil, saveErr
	}

	reg.log.WithFields(logrus.Fields{
		"default_cache_dir": doc.Info.DefaultCacheDir,
		"default_data_dir":  doc.Info.DefaultDataDir,
	}).Debug("created registry")

	return reg, nil
}

// Path returns the registry file path.
func (r *Registry) Path() string {
	return r.path
}

// Info returns the default directories stored in the registry.
func (r *Registry) Info() Info {
	return r.doc.Info
}

// Document returns a deep copy of the in-memory document.
func (r *Registry) Document() *Document {
	return r.doc.Clone()
}

// Save writes the in-memory document to the registry file.
func (r *Registry) Save() error {
	return r.SaveTo(r.path)
}

// SaveTo writes the in-memory document to path.
func (r *Registry) SaveTo(path string) error {
	err := Persist(r.fs, r.doc, path)
	if err != nil {
		return err
	}

	r.log.WithField("path", path).Debug("persisted registry")

	return nil
}

// Category returns the category the dataset is registered under.
// Categories are scanned in sorted order.
func (r *Registry) Category(name string) (string, bool) {
	for _, category := range r.Categories() {
		if _, ok := r.doc.Dataset[category][name]; ok {
			return category, true
		}
	}

	return "", false
}

// ExistsDataset reports whether the dataset is registered.
func (r *Registry) ExistsDataset(name string) bool {
	_, ok := r.lookup(name)

	return ok
}

// ExistsTask reports whether the dataset is registered with a cache file for
// task.
func (r *Registry) ExistsTask(name, task string) bool {
	rec, ok := r.lookup(name)
	if !ok {
		return false
	}

	_, ok = rec.CacheFiles[task]

	return ok
}

// Record returns a copy of the dataset's record.
//
// Possible errors: *[DatasetNotFoundError].
func (r *Registry) Record(name string) (Record, error) {
	rec, ok := r.lookup(name)
	if !ok {
		return Record{}, &DatasetNotFoundError{Name: name}
	}

	return rec.Clone(), nil
}

// TaskPath returns the metadata file path of the dataset's task.
//
// Possible errors: *[DatasetNotFoundError], [ErrTaskNotFound].
func (r *Registry) TaskPath(name, task string) (string, error) {
	rec, ok := r.lookup(name)
	if !ok {
		return "", &DatasetNotFoundError{Name: name}
	}

	path, ok := rec.CacheFiles[task]
	if !ok {
		return "", fmt.Errorf("%w: dataset %q has no task %q", ErrTaskNotFound, name, task)
	}

	return path, nil
}

// Field returns the data_dir or cache_dir of a registered dataset.
//
// Possible errors: *[DatasetNotFoundError], [ErrUnknownField].
func (r *Registry) Field(name, field string) (string, error) {
	rec, ok := r.lookup(name)
	if !ok {
		return "", &DatasetNotFoundError{Name: name}
	}

	switch field {
	case FieldDataDir:
		return rec.DataDir, nil
	case FieldCacheDir:
		return rec.CacheDir, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

// SetField changes the data_dir or cache_dir of a registered dataset and
// persists the registry. On a write error the change is rolled back.
//
// Possible errors: *[DatasetNotFoundError], [ErrUnknownField], write errors.
func (r *Registry) SetField(name, field, value string) error {
	rec, ok := r.lookup(name)
	if !ok {
		return &DatasetNotFoundError{Name: name}
	}

	prev := r.doc.Clone()

	switch field {
	case FieldDataDir:
		rec.DataDir = value
	case FieldCacheDir:
		rec.CacheDir = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	return r.saveOrRollback(prev)
}

// Upsert creates or updates the record of the dataset under category and
// persists the registry.
//
// When the dataset already exists under category, cacheFiles is merged into
// the existing cache files: entries in cacheFiles win on collision, other
// existing tasks are kept. The data and cache directories are replaced.
//
// If the registry cannot be written, the in-memory document is restored to
// its state before the call and the write error is returned.
func (r *Registry) Upsert(name, category, dataDir, cacheDir string, cacheFiles map[string]string) error {
	if name == "" {
		return fmt.Errorf("%w: dataset name is empty", ErrInvalidInput)
	}

	if category == "" {
		return fmt.Errorf("%w: category is empty", ErrInvalidInput)
	}

	prev := r.doc.Clone()

	// Names are unique across categories: a dataset re-registered under
	// another category starts over with a fresh record.
	if previous, ok := r.Category(name); ok && previous != category {
		delete(r.doc.Dataset[previous], name)
	}

	datasets, ok := r.doc.Dataset[category]
	if !ok {
		datasets = make(map[string]*Record)
		r.doc.Dataset[category] = datasets
	}

	merged := make(map[string]string, len(cacheFiles))
	if old, exists := datasets[name]; exists {
		for task, path := range old.CacheFiles {
			merged[task] = path
		}
	}

	for task, path := range cacheFiles {
		merged[task] = path
	}

	datasets[name] = &Record{
		DataDir:    dataDir,
		CacheDir:   cacheDir,
		CacheFiles: merged,
	}

	err := r.saveOrRollback(prev)
	if err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{
		"dataset":  name,
		"category": category,
		"tasks":    len(merged),
	}).Debug("upserted dataset")

	return nil
}

// Remove deletes the dataset's cache directory from disk, drops its record
// and persists the registry. With deleteData the data directory is removed
// as well.
//
// Directories that are already gone are ignored, any other removal error is
// returned. Removing a dataset that is not registered does nothing.
//
// If the registry cannot be written, the record is kept in memory and the
// write error is returned. The cache directory is gone at that point.
func (r *Registry) Remove(name string, deleteData bool) error {
	category, ok := r.Category(name)
	if !ok {
		r.log.WithField("dataset", name).Debug("remove: dataset not registered")

		return nil
	}

	paths := r.StoragePaths(name)

	cacheErr := r.removeTolerant(paths.CacheDir)
	if cacheErr != nil {
		return fmt.Errorf("remove cache dir of %q: %w", name, cacheErr)
	}

	prev := r.doc.Clone()

	delete(r.doc.Dataset[category], name)

	saveErr := r.saveOrRollback(prev)
	if saveErr != nil {
		return saveErr
	}

	r.log.WithFields(logrus.Fields{
		"dataset":  name,
		"category": category,
	}).Debug("removed dataset")

	if !deleteData {
		return nil
	}

	dataErr := r.removeTolerant(paths.DataDir)
	if dataErr != nil {
		return fmt.Errorf("remove data dir of %q: %w", name, dataErr)
	}

	return nil
}

// StoragePaths returns the dataset's cache and data directories.
//
// For datasets that are not registered, the paths are synthesized from the
// default directories: <default_cache_dir>/<name>/cache and
// <default_data_dir>/<name>/data. The registry is not modified.
func (r *Registry) StoragePaths(name string) Paths {
	if rec, ok := r.lookup(name); ok {
		return Paths{CacheDir: rec.CacheDir, DataDir: rec.DataDir}
	}

	return Paths{
		CacheDir: filepath.Join(r.doc.Info.DefaultCacheDir, name, "cache"),
		DataDir:  filepath.Join(r.doc.Info.DefaultDataDir, name, "data"),
	}
}

// Categories returns all category names, sorted.
func (r *Registry) Categories() []string {
	categories := make([]string, 0, len(r.doc.Dataset))
	for category := range r.doc.Dataset {
		categories = append(categories, category)
	}

	slices.Sort(categories)

	return categories
}

// Datasets returns the dataset names of a category, sorted. Unknown
// categories yield nil.
func (r *Registry) Datasets(category string) []string {
	datasets, ok := r.doc.Dataset[category]
	if !ok {
		return nil
	}

	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Entries returns every registered dataset sorted by category, then name.
func (r *Registry) Entries() []Entry {
	var entries []Entry

	for _, category := range r.Categories() {
		for _, name := range r.Datasets(category) {
			entries = append(entries, Entry{
				Category: category,
				Name:     name,
				Record:   r.doc.Dataset[category][name].Clone(),
			})
		}
	}

	return entries
}

func (r *Registry) lookup(name string) (*Record, bool) {
	category, ok := r.Category(name)
	if !ok {
		return nil, false
	}

	return r.doc.Dataset[category][name], true
}

// saveOrRollback persists the document and restores prev when the write
// fails.
func (r *Registry) saveOrRollback(prev *Document) error {
	err := r.Save()
	if err != nil {
		r.doc = prev

		return err
	}

	return nil
}

func (r *Registry) removeTolerant(path string) error {
	if path == "" {
		return nil
	}

	err := r.fs.RemoveAll(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}
