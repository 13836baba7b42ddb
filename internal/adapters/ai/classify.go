package ai

import (
	"finsight/pkg/errors"
)

// classifyStatus wraps a provider API failure with the sentinel for its HTTP status
func classifyStatus(provider string, status int, err error) error {
	return errors.NewProviderError(provider, "analyze", errors.Wrapf(errors.FromHTTPStatus(status), "status %d: %v", status, err))
}
