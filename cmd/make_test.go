package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotwatch/internal/herrors"
)

func TestRunMakeRejectsCombinedDebugAndOptimize(t *testing.T) {
	makeDebug = true
	makeOptimize = true
	t.Cleanup(func() { makeDebug, makeOptimize = false, false })

	err := runMake(makeCmd, nil)
	require.Error(t, err)

	var herr *herrors.HotwatchError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, herrors.CodeUnexpectedFlags, herr.Code)
}
