package wsserver

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/conneroisu/hotwatch/internal/types"
)

// URLPrefix is the well-known path prefix every client connect URL must
// start with (renamed from the original tool's "/elm-watch?" convention).
const URLPrefix = "/hotwatch"

// ConnectParams is the decoded query string of a client connect URL.
type ConnectParams struct {
	Version               string
	WebSocketToken        string
	TargetName            types.TargetID
	CompiledTimestampMs   int64
}

// BuildConnectURL is the inverse of ParseConnectURL; round-tripping any
// value through Build then Parse must yield identical fields (L2).
func BuildConnectURL(host string, port int, p ConnectParams) string {
	v := url.Values{}
	v.Set("hotwatchVersion", p.Version)
	v.Set("webSocketToken", p.WebSocketToken)
	v.Set("targetName", string(p.TargetName))
	v.Set("compiledTimestamp", strconv.FormatInt(p.CompiledTimestampMs, 10))
	return fmt.Sprintf("ws://%s:%d%s?%s", host, port, URLPrefix, v.Encode())
}

// ParseConnectURL implements the connect-path validation in spec.md §4.I:
// matching prefix, decodable parameters. Token and version equality and
// target resolution are checked by the caller, which has access to the
// live Project and server secret.
func ParseConnectURL(raw string) (ConnectParams, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ConnectParams{}, fmt.Errorf("malformed url: %w", err)
	}
	if !strings.HasPrefix(u.Path, URLPrefix) {
		return ConnectParams{}, fmt.Errorf("wrong URL prefix: %s", u.Path)
	}

	q := u.Query()
	version := q.Get("hotwatchVersion")
	token := q.Get("webSocketToken")
	target := q.Get("targetName")
	tsRaw := q.Get("compiledTimestamp")

	if version == "" || token == "" || target == "" || tsRaw == "" {
		return ConnectParams{}, fmt.Errorf("missing required query parameter")
	}

	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return ConnectParams{}, fmt.Errorf("invalid compiledTimestamp: %w", err)
	}

	return ConnectParams{
		Version:             version,
		WebSocketToken:      token,
		TargetName:          types.TargetID(target),
		CompiledTimestampMs: ts,
	}, nil
}
