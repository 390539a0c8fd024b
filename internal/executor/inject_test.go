package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotwatch/internal/types"
)

func TestInjectPrependsRecognizableHeader(t *testing.T) {
	code := []byte(`{"Main":1,"Sub":2}`)
	injected, fields, err := Inject(nil, code, "a", 8765, types.ModeStandard, time.Unix(1700000000, 0), false)

	require.NoError(t, err)
	assert.True(t, HasRecognizableHeader(injected))
	assert.Contains(t, fields, "Main")
	assert.Contains(t, fields, "Sub")
}

func TestHasRecognizableHeaderRejectsPlainCode(t *testing.T) {
	assert.False(t, HasRecognizableHeader([]byte("console.log(1)")))
}
