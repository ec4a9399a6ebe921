package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dbcollection/pkg/container"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func mustArray[T container.Number](t *testing.T, shape []int, values []T) *container.Array {
	t.Helper()

	arr, err := container.NewArray(shape, values)
	require.NoError(t, err)

	return arr
}

// writeContainer writes a classification container to dir/name.
//
// train: images [4,2,2], labels [7 8 9 6], classes ["cat" "dog"],
// objects (image row, label row): (0,3) (1,2) (2,1) (3,0).
// test: labels [1 2].
func writeContainer(t *testing.T, dir, name string) string {
	t.Helper()

	w := container.NewWriter()

	images := mustArray(t, []int{4, 2, 2}, []uint8{
		0, 1, 2, 3,
		10, 11, 12, 13,
		20, 21, 22, 23,
		30, 31, 32, 33,
	})
	require.NoError(t, w.Put("train", "images", images))
	require.NoError(t, w.Put("train", "labels", mustArray(t, []int{4}, []int32{7, 8, 9, 6})))
	require.NoError(t, w.Put("train", "classes", container.TextArray([]string{"cat", "dog"})))
	require.NoError(t, w.PutObjects("train", []string{"images", "labels"},
		mustArray(t, []int{4, 2}, []int64{0, 3, 1, 2, 2, 1, 3, 0})))
	require.NoError(t, w.Put("test", "labels", mustArray(t, []int{2}, []int32{1, 2})))

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, w.WriteFile(path))

	return path
}
