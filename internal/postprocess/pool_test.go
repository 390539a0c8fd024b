package postprocess

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotwatch/internal/types"
)

func scriptPath(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "postprocess.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestRunReturnsStdout(t *testing.T) {
	p := New(2)
	h, err := p.Run(context.Background(), []string{"cat"}, []byte("hello"), types.ModeStandard, types.RunModeMake)
	require.NoError(t, err)

	res, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), res.Code)
}

func TestRunNonZeroExitIsError(t *testing.T) {
	path := scriptPath(t, "exit 3")
	p := New(1)
	h, err := p.Run(context.Background(), []string{path}, nil, types.ModeStandard, types.RunModeMake)
	require.NoError(t, err)

	_, err = h.Wait(context.Background())
	require.Error(t, err)
}

func TestKillMarksResultKilled(t *testing.T) {
	path := scriptPath(t, "sleep 5")
	p := New(1)
	h, err := p.Run(context.Background(), []string{path}, nil, types.ModeStandard, types.RunModeHot)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	h.Kill(true)

	res, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Killed)
}

func TestEmptyArgvRejected(t *testing.T) {
	p := New(1)
	_, err := p.Run(context.Background(), nil, nil, types.ModeStandard, types.RunModeMake)
	require.Error(t, err)
}

func TestCalculateMaxDefaultsToLiveTargetsOrOne(t *testing.T) {
	p := New(4)
	assert.Equal(t, 1, p.CalculateMax(0))
	assert.Equal(t, 3, p.CalculateMax(3))
}
