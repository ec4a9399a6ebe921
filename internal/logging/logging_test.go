package logging_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/calvinalkan/dbcollection/internal/logging"
)

func Test_New_Writes_Debug_Events_When_Verbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log := logging.New(&buf, true)
	log.WithField("prefix", "registry").WithField("dataset", "mnist").Debug("created registry")

	out := buf.String()
	assert.Contains(t, out, "registry:")
	assert.Contains(t, out, "created registry")
	assert.Contains(t, out, "dataset=mnist")
}

func Test_New_Drops_Debug_Events_When_Not_Verbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log := logging.New(&buf, false)
	log.Debug("hidden")
	log.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
