package wsserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hotwatch/internal/types"
)

func TestConnectURLRoundTrip(t *testing.T) {
	want := ConnectParams{
		Version:             "1.2.3",
		WebSocketToken:      "deadbeef",
		TargetName:          types.TargetID("main"),
		CompiledTimestampMs: 1700000000000,
	}

	raw := BuildConnectURL("localhost", 8765, want)
	got, err := ParseConnectURL(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseConnectURLRejectsWrongPrefix(t *testing.T) {
	_, err := ParseConnectURL("ws://localhost:1234/other?hotwatchVersion=1&webSocketToken=t&targetName=a&compiledTimestamp=1")
	require.Error(t, err)
}

func TestParseConnectURLRejectsMissingParams(t *testing.T) {
	_, err := ParseConnectURL("ws://localhost:1234" + URLPrefix + "?hotwatchVersion=1")
	require.Error(t, err)
}

func TestDecodeClientFrameChangedCompilationMode(t *testing.T) {
	f, err := DecodeClientFrame([]byte(`{"tag":"ChangedCompilationMode","compilationMode":"debug"}`))
	require.NoError(t, err)
	assert.Equal(t, TagChangedCompilationMode, f.Tag)
	assert.Equal(t, "debug", f.CompilationMode)
}

func TestEncodeServerFrameStatusChanged(t *testing.T) {
	data, err := EncodeServerFrame(ServerFrame{
		Tag:    TagStatusChanged,
		Status: &StatusPayload{Tag: StatusTagBusy, CompilationMode: "standard"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tag":"StatusChanged"`)
	assert.Contains(t, string(data), `"tag":"Busy"`)
}
