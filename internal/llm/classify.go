package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
)

// Failure is the user-facing category of a generation error.
type Failure string

const (
	FailureAPIKey  Failure = "api_key"
	FailureNetwork Failure = "network"
	FailureGeneric Failure = "generic"
)

// Message returns the bot text shown for the failure.
func (f Failure) Message() string {
	switch f {
	case FailureAPIKey:
		return "Check your API key."
	case FailureNetwork:
		return "Network error."
	default:
		return "Sorry, I encountered an error."
	}
}

// Classify maps a generation error onto a Failure.
func Classify(err error) Failure {
	if err == nil {
		return FailureGeneric
	}

	if status := statusCode(err); status == http.StatusUnauthorized || status == http.StatusForbidden {
		return FailureAPIKey
	}
	if strings.Contains(err.Error(), "API key") {
		return FailureAPIKey
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureNetwork
	}
	if strings.Contains(strings.ToLower(err.Error()), "network") {
		return FailureNetwork
	}

	return FailureGeneric
}

func statusCode(err error) int {
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode
	}
	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) {
		return openaiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
