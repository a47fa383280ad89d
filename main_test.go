package main

import (
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, logger.GetLevel())

	_, err = newLogger("loud")
	assert.Error(t, err)
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "sources", "fetch", "fetch-due", "lookup", "candidates"}, names)
}

func TestCommandsAgainstSQLite(t *testing.T) {
	t.Setenv("TIER1_DB_DRIVER", "sqlite")
	t.Setenv("TIER1_SQLITE_PATH", filepath.Join(t.TempDir(), "data", "tier1.db"))
	t.Setenv("TIER1_LOG_LEVEL", "error")

	run := func(args ...string) error {
		root := newRootCmd()
		root.SetArgs(args)
		return root.Execute()
	}

	require.NoError(t, run("migrate"))
	require.NoError(t, run("sources"))
	require.NoError(t, run("lookup", "--state", "CA", "--city", "Oakland"))
	require.NoError(t, run("candidates", "--state", "california", "--city", "Oakland"))

	assert.Error(t, run("fetch", "no_such_source"))
	assert.Error(t, run("lookup"))
	assert.Error(t, run("candidates", "--state", "Narnia"))
}
