package wsserver

import "encoding/json"

// Frame tags, matching spec.md §6's "JSON, tagged by tag" wire format.
const (
	TagStatusChanged                           = "StatusChanged"
	TagSuccessfullyCompiled                    = "SuccessfullyCompiled"
	TagSuccessfullyCompiledButRecordFieldsChanged = "SuccessfullyCompiledButRecordFieldsChanged"
	TagStaticFilesMayHaveChangedWhileDisconnected = "StaticFilesMayHaveChangedWhileDisconnected"
	TagStaticFilesChanged                      = "StaticFilesChanged"
	TagFocusedTabAcknowledged                  = "FocusedTabAcknowledged"
	TagOpenEditorFailed                        = "OpenEditorFailed"

	TagChangedCompilationMode     = "ChangedCompilationMode"
	TagChangedBrowserUiPosition   = "ChangedBrowserUiPosition"
	TagChangedOpenErrorOverlay    = "ChangedOpenErrorOverlay"
	TagFocusedTab                 = "FocusedTab"
	TagPressedOpenEditor           = "PressedOpenEditor"
)

// StatusTag values for the StatusChanged payload's nested "status".
const (
	StatusTagBusy            = "Busy"
	StatusTagAlreadyUpToDate = "AlreadyUpToDate"
	StatusTagCompileError    = "CompileError"
	StatusTagClientError     = "ClientError"
	StatusTagElmJsonError    = "ElmJsonError"
)

// ServerFrame is the envelope every server-to-client message uses.
type ServerFrame struct {
	Tag string `json:"tag"`

	// StatusChanged
	Status *StatusPayload `json:"status,omitempty"`

	// SuccessfullyCompiled[ButRecordFieldsChanged]
	Code              string `json:"code,omitempty"`
	CompiledTimestamp int64  `json:"compiledTimestamp,omitempty"`
	CompilationMode   string `json:"compilationMode,omitempty"`
	BrowserUiPosition string `json:"browserUiPosition,omitempty"`

	// StaticFilesChanged
	ChangedFileUrlPaths []string `json:"changedFileUrlPaths,omitempty"`

	// OpenEditorFailed
	Error string `json:"error,omitempty"`
}

// StatusPayload is the tagged union nested inside a StatusChanged frame.
type StatusPayload struct {
	Tag string `json:"tag"`

	CompilationMode   string `json:"compilationMode,omitempty"`
	BrowserUiPosition string `json:"browserUiPosition,omitempty"`
	OpenErrorOverlay  *bool  `json:"openErrorOverlay,omitempty"`

	Errors          []CompileErrorEntry `json:"errors,omitempty"`
	ForegroundColor string               `json:"foregroundColor,omitempty"`
	BackgroundColor string               `json:"backgroundColor,omitempty"`

	Message string `json:"message,omitempty"`
}

// CompileErrorEntry is one rendered compiler error inside a CompileError
// status payload.
type CompileErrorEntry struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ClientFrame is the envelope every client-to-server message uses.
type ClientFrame struct {
	Tag string `json:"tag"`

	CompilationMode   string `json:"compilationMode,omitempty"`
	BrowserUiPosition string `json:"browserUiPosition,omitempty"`
	OpenErrorOverlay  *bool  `json:"openErrorOverlay,omitempty"`

	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// DecodeClientFrame parses a raw message payload from the wire.
func DecodeClientFrame(data []byte) (ClientFrame, error) {
	var f ClientFrame
	err := json.Unmarshal(data, &f)
	return f, err
}

// EncodeServerFrame serializes a frame for Send.
func EncodeServerFrame(f ServerFrame) ([]byte, error) {
	return json.Marshal(f)
}
