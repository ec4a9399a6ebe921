package container_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dbcollection/pkg/container"
)

// writeFixture writes a small container with a train and a test set.
//
// train: images [4,2,2] uint8, labels [4] int32, classes text [2,W],
// object_ids [4,2] -> (images row, labels row).
// test: labels [2] int32, object_ids [2,2].
func writeFixture(t *testing.T) string {
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
	require.NoError(t, w.PutObjects("test", []string{"images", "labels"},
		mustArray(t, []int{2, 2}, []int32{0, 1, 0, 0})))

	path := filepath.Join(t.TempDir(), "classification.dbc")
	require.NoError(t, w.WriteFile(path))

	return path
}

func openFixture(t *testing.T) *container.Reader {
	t.Helper()

	r, err := container.Open(writeFixture(t))
	require.NoError(t, err)

	t.Cleanup(func() { _ = r.Close() })

	return r
}

func Test_Open_Lists_Sets_And_ObjectFields_When_Container_Is_Valid(t *testing.T) {
	t.Parallel()

	r := openFixture(t)

	if diff := cmp.Diff([]string{"test", "train"}, r.Sets()); diff != "" {
		t.Fatalf("sets mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"images", "labels"}, r.ObjectFields()); diff != "" {
		t.Fatalf("object fields mismatch (-want +got):\n%s", diff)
	}

	fields, err := r.Fields("train")
	require.NoError(t, err)
	assert.Equal(t, []string{"classes", "images", "labels", "object_fields", "object_ids"}, fields)
}

func Test_Open_Returns_Error_When_File_Is_Missing(t *testing.T) {
	t.Parallel()

	_, err := container.Open(filepath.Join(t.TempDir(), "missing.dbc"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func Test_Open_Returns_Nil_ObjectFields_When_Train_Set_Is_Absent(t *testing.T) {
	t.Parallel()

	w := container.NewWriter()
	require.NoError(t, w.Put("val", "x", mustArray(t, []int{1}, []float32{1})))

	path := filepath.Join(t.TempDir(), "c.dbc")
	require.NoError(t, w.WriteFile(path))

	r, err := container.Open(path)
	require.NoError(t, err)

	defer r.Close()

	assert.Nil(t, r.ObjectFields())

	_, err = r.GetObject("val", container.At(0), true)
	require.ErrorIs(t, err, container.ErrNoObjectFields)
}

func Test_Get_Returns_Whole_Field_When_Index_Is_Nil(t *testing.T) {
	t.Parallel()

	r := openFixture(t)

	labels, err := r.Get("train", "labels", nil)
	require.NoError(t, err)

	assert.Equal(t, container.Int32, labels.DType())
	assert.Equal(t, []int{4}, labels.Shape())
	assert.Equal(t, []int32{7, 8, 9, 6}, container.Values[int32](labels))
}

func Test_Get_Returns_Lower_Rank_Row_When_Index_Is_At(t *testing.T) {
	t.Parallel()

	r := openFixture(t)

	img, err := r.Get("train", "images", container.At(2))
	require.NoError(t, err)
	assert.Equal(t, "[[20 21] [22 23]]", img.String())

	label, err := r.Get("train", "labels", container.At(-1))
	require.NoError(t, err)
	assert.Equal(t, 0, label.Ndim())

	v, err := label.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(6), v)
}

func Test_Get_Returns_Stacked_Rows_When_Index_Is_Rows(t *testing.T) {
	t.Parallel()

	r := openFixture(t)

	got, err := r.Get("train", "labels", container.Rows(3, 0))
	require.NoError(t, err)

	assert.Equal(t, []int{2}, got.Shape())
	assert.Equal(t, []int32{6, 7}, container.Values[int32](got))

	one, err := r.Get("train", "images", container.Rows(1))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2}, one.Shape())
}

func Test_Get_Propagates_Lookup_Errors_When_Path_Does_Not_Exist(t *testing.T) {
	t.Parallel()

	r := openFixture(t)

	_, err := r.Get("val", "labels", nil)
	require.ErrorIs(t, err, container.ErrSetNotFound)

	_, err = r.Get("train", "boxes", nil)
	require.ErrorIs(t, err, container.ErrFieldNotFound)
	assert.Contains(t, err.Error(), "train/boxes")

	_, err = r.Get("train", "labels", container.At(4))
	require.ErrorIs(t, err, container.ErrOutOfRange)
	assert.Contains(t, err.Error(), "train/labels")
}

func Test_Get_Returns_Copies_When_Reader_Is_Closed_Afterwards(t *testing.T) {
	t.Parallel()

	r, err := container.Open(writeFixture(t))
	require.NoError(t, err)

	images, err := r.Get("train", "images", nil)
	require.NoError(t, err)

	require.NoError(t, r.Close())

	assert.Equal(t, 16, images.NumElements())
	assert.Equal(t, "[[30 31] [32 33]]", mustRow(t, images, 3).String())
}

func mustRow(t *testing.T, a *container.Array, i int) *container.Array {
	t.Helper()

	row, err := a.Row(i)
	require.NoError(t, err)

	return row
}

func Test_GetObject_Returns_Raw_IDs_When_Resolve_Is_False(t *testing.T) {
	t.Parallel()

	r := openFixture(t)

	res, err := r.GetObject("train", container.At(1), false)
	require.NoError(t, err)

	require.NotNil(t, res.IDs)
	assert.Equal(t, []int64{1, 2}, container.Values[int64](res.IDs))
	assert.Nil(t, res.Tuple)
	assert.Nil(t, res.Tuples)

	all, err := r.GetObject("train", nil, false)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2}, all.IDs.Shape())
}

func Test_GetObject_Fills_Tuple_When_Exactly_One_Row_Is_Requested(t *testing.T) {
	t.Parallel()

	r := openFixture(t)

	for _, idx := range []container.Index{container.At(1), container.Rows(1)} {
		res, err := r.GetObject("train", idx, true)
		require.NoError(t, err)

		require.Nil(t, res.Tuples)
		require.Len(t, res.Tuple, 2)

		// object 1 -> images row 1, labels row 2
		assert.Equal(t, "[[10 11] [12 13]]", res.Tuple[0].String())

		label, err := res.Tuple[1].Int64()
		require.NoError(t, err)
		assert.Equal(t, int64(9), label)
	}
}

func Test_GetObject_Fills_Tuples_When_Several_Rows_Are_Requested(t *testing.T) {
	t.Parallel()

	r := openFixture(t)

	res, err := r.GetObject("train", container.Rows(0, 3), true)
	require.NoError(t, err)

	require.Nil(t, res.Tuple)
	require.Len(t, res.Tuples, 2)

	assert.Equal(t, "[[0 1] [2 3]]", res.Tuples[0][0].String())
	assert.Equal(t, "6", res.Tuples[0][1].String())
	assert.Equal(t, "[[30 31] [32 33]]", res.Tuples[1][0].String())
	assert.Equal(t, "7", res.Tuples[1][1].String())

	all, err := r.GetObject("train", nil, true)
	require.NoError(t, err)
	assert.Len(t, all.Tuples, 4)
}

func Test_GetObject_Returns_Error_When_Set_Lacks_A_Referenced_Field(t *testing.T) {
	t.Parallel()

	r := openFixture(t)

	_, err := r.GetObject("test", container.At(0), true)
	require.ErrorIs(t, err, container.ErrFieldNotFound)
	assert.Contains(t, err.Error(), "test/images")
}

func Test_Size_Returns_First_Dimension_When_Field_Given_Or_Empty(t *testing.T) {
	t.Parallel()

	r := openFixture(t)

	n, err := r.Size("train", "images")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = r.Size("test", "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	shape, err := r.Shape("train", "images")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 2}, shape)

	shape, err = r.Shape("train", "")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2}, shape)
}

func Test_Size_Returns_ErrOutOfRange_When_Field_Is_Zero_Dimensional(t *testing.T) {
	t.Parallel()

	w := container.NewWriter()
	require.NoError(t, w.Put("meta", "version", mustArray(t, nil, []int32{3})))

	path := filepath.Join(t.TempDir(), "c.dbc")
	require.NoError(t, w.WriteFile(path))

	r, err := container.Open(path)
	require.NoError(t, err)

	defer r.Close()

	_, err = r.Size("meta", "version")
	require.ErrorIs(t, err, container.ErrOutOfRange)

	shape, err := r.Shape("meta", "version")
	require.NoError(t, err)
	assert.Empty(t, shape)
}

func Test_FieldPosition_Returns_Index_When_Field_Is_An_Object_Field(t *testing.T) {
	t.Parallel()

	r := openFixture(t)

	pos, err := r.FieldPosition("labels")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	_, err = r.FieldPosition("classes")
	require.ErrorIs(t, err, container.ErrFieldNotFound)
	assert.Contains(t, err.Error(), `field name "classes" does not exist`)
}

func Test_Classes_Decode_As_Strings_When_Stored_As_Text(t *testing.T) {
	t.Parallel()

	r := openFixture(t)

	arr, err := r.Get("train", "classes", nil)
	require.NoError(t, err)

	classes, err := arr.Strings()
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog"}, classes)
}

func Test_Close_Is_Idempotent_And_Lookups_Fail_When_Closed(t *testing.T) {
	t.Parallel()

	r, err := container.Open(writeFixture(t))
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Get("train", "labels", nil)
	require.ErrorIs(t, err, container.ErrClosed)

	_, err = r.Fields("train")
	require.ErrorIs(t, err, container.ErrClosed)

	_, err = r.Size("train", "")
	require.ErrorIs(t, err, container.ErrClosed)

	_, err = r.GetObject("train", container.At(0), true)
	require.ErrorIs(t, err, container.ErrClosed)

	_, err = r.GetObject("train", container.At(0), false)
	require.ErrorIs(t, err, container.ErrClosed)
}

func Test_Reader_Serves_Concurrent_Lookups_When_Shared(t *testing.T) {
	t.Parallel()

	r := openFixture(t)

	var wg sync.WaitGroup

	for i := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := r.GetObject("train", container.At(i%4), true)
			assert.NoError(t, err)
			assert.Len(t, res.Tuple, 2)
		}()
	}

	wg.Wait()
}

func Test_Open_Allows_Several_Readers_When_Same_File(t *testing.T) {
	t.Parallel()

	path := writeFixture(t)

	a, err := container.Open(path)
	require.NoError(t, err)

	defer a.Close()

	b, err := container.Open(path)
	require.NoError(t, err)

	defer b.Close()

	assert.Equal(t, a.Sets(), b.Sets())
	assert.Equal(t, path, a.Path())
}
