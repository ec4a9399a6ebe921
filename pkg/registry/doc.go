// Package registry manages the dataset registry file.
//
// The registry is a single JSON document mapping category → dataset name →
// [Record]. A record holds the dataset's data directory, its cache directory
// and, per task, the path of the processed metadata file.
//
// # Basic Usage
//
//	reg, err := registry.Open(registry.Options{
//	    Path:     registry.DefaultPath(home),
//	    Defaults: registry.DefaultInfo(home),
//	})
//	if err != nil {
//	    return err
//	}
//
//	err = reg.Upsert("mnist", "image_processing", dataDir, cacheDir,
//	    map[string]string{"classification": "/cache/mnist/classification.dbc"})
//
//	path, err := reg.TaskPath("mnist", "classification")
//
// # Persistence
//
// Every mutation rewrites the whole file. The registry is small and is
// expected to have one writer at a time; concurrent processes updating the
// same file race and the last successful write wins.
//
// # Error Handling
//
// Membership checks ([Registry.ExistsDataset], [Registry.ExistsTask],
// [Registry.Category]) never fail. Lookups that need a record
// ([Registry.Record], [Registry.TaskPath]) return [ErrDatasetNotFound] or
// [ErrTaskNotFound]. I/O errors are wrapped with the path and returned as is.
package registry
