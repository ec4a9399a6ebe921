// Package dataset opens the container of a registered dataset task.
//
//	reg, _ := registry.Open(opts)
//	ld, err := dataset.Load(reg, "mnist", "classification")
//	if err != nil {
//	    return err
//	}
//	defer ld.Close()
//
//	labels, err := ld.Get("train", "labels", nil)
package dataset

import (
	"fmt"

	"github.com/calvinalkan/dbcollection/pkg/container"
	"github.com/calvinalkan/dbcollection/pkg/registry"
)

// Loader is an open dataset task. The embedded [container.Reader] serves all
// field access.
type Loader struct {
	Name      string
	Task      string
	Category  string
	DataDir   string
	CachePath string

	*container.Reader
}

// Load resolves the task container of dataset name through reg and opens it.
//
// Possible errors: *[registry.DatasetNotFoundError], [registry.ErrTaskNotFound],
// and the open errors of [container.Open].
func Load(reg *registry.Registry, name, task string) (*Loader, error) {
	rec, err := reg.Record(name)
	if err != nil {
		return nil, err
	}

	cachePath, err := reg.TaskPath(name, task)
	if err != nil {
		return nil, err
	}

	reader, err := container.Open(cachePath)
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", name, task, err)
	}

	category, _ := reg.Category(name)

	return &Loader{
		Name:      name,
		Task:      task,
		Category:  category,
		DataDir:   rec.DataDir,
		CachePath: cachePath,
		Reader:    reader,
	}, nil
}
