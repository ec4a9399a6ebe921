package dataset_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dbcollection/pkg/container"
	"github.com/calvinalkan/dbcollection/pkg/dataset"
	"github.com/calvinalkan/dbcollection/pkg/registry"
)

func setupRegistry(t *testing.T) (*registry.Registry, string) {
	t.Helper()

	home := t.TempDir()

	reg, err := registry.Open(registry.Options{
		Path:     registry.DefaultPath(home),
		Defaults: registry.DefaultInfo(home),
	})
	require.NoError(t, err)

	labels, err := container.Vector[int32](5, 0, 4)
	require.NoError(t, err)

	w := container.NewWriter()
	require.NoError(t, w.Put("train", "labels", labels))

	cachePath := filepath.Join(home, "classification.dbc")
	require.NoError(t, w.WriteFile(cachePath))

	require.NoError(t, reg.Upsert("mnist", "classification", filepath.Join(home, "data"), home,
		map[string]string{"classification": cachePath, "missing": filepath.Join(home, "missing.dbc")}))

	return reg, cachePath
}

func Test_Load_Opens_Task_Container_When_Dataset_Is_Registered(t *testing.T) {
	t.Parallel()

	reg, cachePath := setupRegistry(t)

	ld, err := dataset.Load(reg, "mnist", "classification")
	require.NoError(t, err)

	defer ld.Close()

	assert.Equal(t, "mnist", ld.Name)
	assert.Equal(t, "classification", ld.Task)
	assert.Equal(t, "classification", ld.Category)
	assert.Equal(t, cachePath, ld.CachePath)
	assert.Equal(t, filepath.Join(filepath.Dir(cachePath), "data"), ld.DataDir)

	n, err := ld.Size("train", "labels")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func Test_Load_Returns_DatasetNotFound_When_Name_Is_Unknown(t *testing.T) {
	t.Parallel()

	reg, _ := setupRegistry(t)

	_, err := dataset.Load(reg, "cifar10", "classification")
	require.ErrorIs(t, err, registry.ErrDatasetNotFound)
}

func Test_Load_Returns_TaskNotFound_When_Task_Is_Unknown(t *testing.T) {
	t.Parallel()

	reg, _ := setupRegistry(t)

	_, err := dataset.Load(reg, "mnist", "detection")
	require.ErrorIs(t, err, registry.ErrTaskNotFound)
}

func Test_Load_Returns_Open_Error_When_Container_Is_Missing(t *testing.T) {
	t.Parallel()

	reg, _ := setupRegistry(t)

	_, err := dataset.Load(reg, "mnist", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load mnist/missing")
}
