package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotwatch/internal/herrors"
)

func TestRunHotRejectsMultipleProjectConfigs(t *testing.T) {
	err := runHot(hotCmd, []string{"a.yaml", "b.yaml"})
	require.Error(t, err)

	var herr *herrors.HotwatchError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, herrors.CodeUnexpectedFlags, herr.Code)
}
