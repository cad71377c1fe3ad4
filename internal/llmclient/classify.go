package llmclient

import (
	"errors"
	"strings"

	"github.com/synthlang/gateway/internal/gatewayerr"
)

// classify maps a raw provider error to the gateway's upstream error
// kinds by inspecting its message, since the go-openai and
// anthropic-sdk-go clients surface HTTP status ambiguously (a wrapped
// string, not always a typed status error).
func classify(err error) gatewayerr.Kind {
	if err == nil {
		return gatewayerr.Internal
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"), strings.Contains(msg, "504"):
		return gatewayerr.UpstreamTimeout
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return gatewayerr.UpstreamRate
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid api key"), strings.Contains(msg, "401"):
		return gatewayerr.UpstreamAuth
	case strings.Contains(msg, "model_not_found"), strings.Contains(msg, "does not exist"), strings.Contains(msg, "404"):
		return gatewayerr.UpstreamInvalid
	case strings.Contains(msg, "invalid request"), strings.Contains(msg, "400"):
		return gatewayerr.UpstreamInvalid
	case strings.Contains(msg, "connection"), strings.Contains(msg, "eof"), strings.Contains(msg, "reset by peer"), strings.Contains(msg, "502"), strings.Contains(msg, "503"):
		return gatewayerr.UpstreamConnection
	default:
		return gatewayerr.UpstreamInvalid
	}
}

var errNoChunksReceived = errors.New("llmclient: stream produced no chunks")
