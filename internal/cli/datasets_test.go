package cli_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dbcollection/internal/cli"
)

func Test_Ls_Creates_Empty_Registry_When_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("ls")

	assert.Empty(t, stdout)
	assert.FileExists(t, c.RegistryPath())
}

func Test_Add_Registers_Dataset_With_Default_Paths_When_Dirs_Omitted(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	cachePath := writeContainer(t, c.Dir, "classification.dbc")

	stdout := c.MustRun("add", "mnist", "--category=classification", "--task", "classification="+cachePath)
	assert.Equal(t, "Registered mnist in classification", stdout)

	assert.Equal(t, "mnist\tclassification\tclassification", c.MustRun("ls"))

	paths := c.MustRun("paths", "mnist")
	cli.AssertContains(t, paths, "cache_dir="+filepath.Join(c.Dir, "dbcollection", "mnist", "cache"))
	cli.AssertContains(t, paths, "data_dir="+filepath.Join(c.Dir, "dbcollection", "mnist", "data"))
}

func Test_Add_Merges_Tasks_When_Dataset_Exists(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	train := writeContainer(t, c.Dir, "a.dbc")
	test := writeContainer(t, c.Dir, "b.dbc")

	c.MustRun("add", "cifar10", "--category=classification", "--data-dir=/d", "--cache-dir=/c", "--task", "train="+train)
	c.MustRun("add", "cifar10", "--category=classification", "--data-dir=/d", "--cache-dir=/c", "--task", "test="+test)

	var info struct {
		Name       string            `json:"name"`
		Category   string            `json:"category"`
		DataDir    string            `json:"data_dir"`
		CacheDir   string            `json:"cache_dir"`
		CacheFiles map[string]string `json:"cache_files"`
	}

	require.NoError(t, json.Unmarshal([]byte(c.MustRun("info", "cifar10")), &info))

	assert.Equal(t, "cifar10", info.Name)
	assert.Equal(t, "classification", info.Category)
	assert.Equal(t, "/d", info.DataDir)
	assert.Equal(t, "/c", info.CacheDir)
	assert.Equal(t, map[string]string{"train": train, "test": test}, info.CacheFiles)

	assert.Equal(t, "cifar10\tclassification\ttest,train", c.MustRun("ls"))
}

func Test_Add_Fails_When_Category_Or_Task_Is_Invalid(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	cli.AssertContains(t, c.MustFail("add", "mnist"), "required flag not set: --category")
	cli.AssertContains(t, c.MustFail("add", "mnist", "--category=x", "--task", "nopath"), `invalid --task: want task=path: "nopath"`)
	cli.AssertContains(t, c.MustFail("add", "--category=x"), "missing argument: <name>")
}

func Test_Ls_Filters_By_Category_When_Flag_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	path := writeContainer(t, c.Dir, "c.dbc")

	c.AddDataset("mnist", "classification", "classification="+path)
	c.AddDataset("coco", "detection", "detection="+path)

	assert.Equal(t, "mnist\tclassification\tclassification\ncoco\tdetection\tdetection", c.MustRun("ls"))
	assert.Equal(t, "coco\tdetection\tdetection", c.MustRun("ls", "--category=detection"))
}

func Test_Ls_Warns_When_Cache_File_Is_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.AddDataset("mnist", "classification", "classification=/nonexistent/c.dbc")

	stdout, stderr, code := c.Run("ls")

	assert.Equal(t, 1, code)
	assert.Equal(t, "mnist\tclassification\tclassification\n", stdout)
	cli.AssertContains(t, stderr, "warning: missing cache file: mnist:classification /nonexistent/c.dbc")
}

func Test_Info_Fails_When_Dataset_Is_Not_Registered(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("info", "mnist")

	cli.AssertContains(t, stderr, `dataset "mnist" does not exist in the cache file`)
}

func Test_Paths_Synthesizes_Defaults_When_Dataset_Is_Not_Registered(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".config", "dbcollection", "config.json"), `{
		"default_cache_dir": "/cache",
		"default_data_dir": "/data",
	}`)

	stdout := c.MustRun("paths", "voc")
	assert.Equal(t, "cache_dir=/cache/voc/cache\ndata_dir=/data/voc/data", stdout)

	assert.Empty(t, c.MustRun("ls"))
}

func Test_Set_Changes_Record_Field_When_Dataset_Is_Registered(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("add", "mnist", "--category=classification", "--data-dir=/old", "--cache-dir=/c")

	assert.Equal(t, "mnist.data_dir=/new", c.MustRun("set", "mnist", "data_dir", "/new"))
	cli.AssertContains(t, c.MustRun("paths", "mnist"), "data_dir=/new")
	assert.Equal(t, "/new", c.Document().Dataset["classification"]["mnist"].DataDir)

	cli.AssertContains(t, c.MustFail("set", "mnist", "tasks", "x"), "registry: unknown record field")
	cli.AssertContains(t, c.MustFail("set", "voc", "data_dir", "x"), `dataset "voc" does not exist`)
}

func Test_Rm_Removes_Record_And_Cache_Dir_When_Dataset_Is_Registered(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	cacheDir := filepath.Join(c.Dir, "cache", "mnist")
	dataDir := filepath.Join(c.Dir, "data", "mnist")
	writeFile(t, filepath.Join(cacheDir, "classification.dbc"), "x")
	writeFile(t, filepath.Join(dataDir, "raw.bin"), "x")

	c.MustRun("add", "mnist", "--category=classification", "--data-dir="+dataDir, "--cache-dir="+cacheDir)

	assert.Equal(t, "Removed mnist", c.MustRun("rm", "mnist"))
	assert.NoDirExists(t, cacheDir)
	assert.DirExists(t, dataDir)
	assert.Empty(t, c.MustRun("ls"))
	assert.NotContains(t, c.Document().Dataset["classification"], "mnist")

	assert.Equal(t, "Not registered: mnist", c.MustRun("rm", "mnist"))
}

func Test_Rm_Deletes_Data_Dir_When_Flag_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	dataDir := filepath.Join(c.Dir, "data", "mnist")
	writeFile(t, filepath.Join(dataDir, "raw.bin"), "x")

	c.MustRun("add", "mnist", "--category=classification", "--data-dir="+dataDir, "--cache-dir="+filepath.Join(c.Dir, "nocache"))
	c.MustRun("rm", "mnist", "--delete-data")

	_, err := os.Stat(dataDir)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func Test_Registry_Flag_Selects_Registry_File_When_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	custom := filepath.Join(c.Dir, "regs", "custom.json")

	c.MustRun("--registry", custom, "add", "mnist", "--category=classification")

	assert.FileExists(t, custom)
	assert.NoFileExists(t, c.RegistryPath())
	assert.Equal(t, "mnist\tclassification", c.MustRun("--registry="+custom, "ls"))
}
