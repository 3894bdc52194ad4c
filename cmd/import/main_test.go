package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseArgs(t *testing.T, args ...string) importArgs {
	t.Helper()
	var got importArgs
	cmd := newImportCmd(func(cmd *cobra.Command, a importArgs) error {
		got = a
		return nil
	})
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return got
}

func TestImportCmdDefaults(t *testing.T) {
	a := parseArgs(t)
	assert.Equal(t, "", a.CSVFile)
	assert.Equal(t, 0, a.Start)
	assert.Nil(t, a.End)
	assert.False(t, a.NoDownload)
	assert.Equal(t, "", a.ImgDir)
}

func TestImportCmdFlags(t *testing.T) {
	a := parseArgs(t, "flowers.csv", "--start", "2", "--end", "7", "--no-download", "--img-dir", "cache")
	assert.Equal(t, "flowers.csv", a.CSVFile)
	assert.Equal(t, 2, a.Start)
	require.NotNil(t, a.End)
	assert.Equal(t, 7, *a.End)
	assert.True(t, a.NoDownload)
	assert.Equal(t, "cache", a.ImgDir)
}

func TestImportCmdExplicitZeroEnd(t *testing.T) {
	a := parseArgs(t, "--end", "0")
	require.NotNil(t, a.End)
	assert.Equal(t, 0, *a.End)
}

func TestImportCmdRejectsExtraArgs(t *testing.T) {
	cmd := newImportCmd(func(*cobra.Command, importArgs) error { return nil })
	cmd.SetArgs([]string{"a.csv", "b.csv"})
	cmd.SilenceErrors = true
	assert.Error(t, cmd.Execute())
}
