package cli_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/calvinalkan/dbcollection/internal/cli"
)

func Test_Sets_Lists_Sets_And_Object_Fields_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	path := writeContainer(t, c.Dir, "c.dbc")

	assert.Equal(t, "test\ntrain\n\n# object fields: images, labels", c.MustRun("sets", path))
}

func Test_Fields_Lists_Fields_With_Shapes_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	path := writeContainer(t, c.Dir, "c.dbc")

	want := "classes\t[2 3]\nimages\t[4 2 2]\nlabels\t[4]\nobject_fields\t[2 6]\nobject_ids\t[4 2]"
	assert.Equal(t, want, c.MustRun("fields", path, "train"))

	cli.AssertContains(t, c.MustFail("fields", path, "val"), "container: set not found")
}

func Test_Get_Prints_Field_Or_Rows_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	path := writeContainer(t, c.Dir, "c.dbc")

	assert.Equal(t, "[7 8 9 6]", c.MustRun("get", path, "train", "labels"))
	assert.Equal(t, "9", c.MustRun("get", path, "train", "labels", "2"))
	assert.Equal(t, "[7 6]", c.MustRun("get", path, "train", "labels", "0", "3"))
	assert.Equal(t, "6", c.MustRun("get", path, "train", "labels", "--", "-1"))
	assert.Equal(t, "[[20 21] [22 23]]", c.MustRun("get", path, "train", "images", "2"))
	assert.Equal(t, "cat\ndog", c.MustRun("get", "--text", path, "train", "classes"))
	assert.Equal(t, "dog", c.MustRun("get", "-t", path, "train", "classes", "1"))
}

func Test_Get_Fails_When_Lookup_Or_Row_Is_Invalid(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	path := writeContainer(t, c.Dir, "c.dbc")

	cli.AssertContains(t, c.MustFail("get", path, "train", "boxes"), "container: field not found")
	cli.AssertContains(t, c.MustFail("get", path, "train", "labels", "4"), "container: index out of range")
	cli.AssertContains(t, c.MustFail("get", path, "train", "labels", "x"), `invalid row index: "x"`)
	cli.AssertContains(t, c.MustFail("get", path, "train"), "missing argument: <field>")
	cli.AssertContains(t, c.MustFail("get", path+".missing", "train", "labels"), "no such file or directory")
}

func Test_Object_Prints_IDs_When_Values_Not_Requested(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	path := writeContainer(t, c.Dir, "c.dbc")

	assert.Equal(t, "[1 2]", c.MustRun("object", path, "train", "1"))
	assert.Equal(t, "[[0 3] [3 0]]", c.MustRun("object", path, "train", "0", "3"))
}

func Test_Object_Prints_Values_When_Flag_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	path := writeContainer(t, c.Dir, "c.dbc")

	assert.Equal(t, "images: [[10 11] [12 13]]\nlabels: 9", c.MustRun("object", path, "train", "1", "--values"))

	want := "[0]\n  images: [[0 1] [2 3]]\n  labels: 6\n[1]\n  images: [[30 31] [32 33]]\n  labels: 7"
	assert.Equal(t, want, c.MustRun("object", "--values", path, "train", "0", "3"))
}

func Test_Size_Prints_Length_Or_Shape_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	path := writeContainer(t, c.Dir, "c.dbc")

	assert.Equal(t, "4", c.MustRun("size", path, "train"))
	assert.Equal(t, "2", c.MustRun("size", path, "test", "labels"))
	assert.Equal(t, "[4 2 2]", c.MustRun("size", path, "train", "images", "--full"))
	assert.Equal(t, "[4 2]", c.MustRun("size", "--full", path, "train"))

	cli.AssertContains(t, c.MustFail("size", path, "test"), "container: field not found")
}

func Test_Accessors_Resolve_Registered_Dataset_When_Source_Is_Name_And_Task(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	path := writeContainer(t, c.Dir, "c.dbc")
	c.AddDataset("mnist", "classification", "classification="+path)

	assert.Equal(t, "[7 8 9 6]", c.MustRun("get", "@mnist:classification", "train", "labels"))
	assert.Equal(t, "4", c.MustRun("size", "@mnist:classification", "train"))

	cli.AssertContains(t, c.MustFail("sets", "@mnist:detection"), "registry: task does not exist")
	cli.AssertContains(t, c.MustFail("sets", "@voc:detection"), `dataset "voc" does not exist`)
	cli.AssertContains(t, c.MustFail("sets", "@mnist"), "invalid source")
	cli.AssertContains(t, c.MustFail("sets"), "missing argument: <source>")
}
