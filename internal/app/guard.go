package app

import (
	"strings"

	apperrors "github.com/charlesng35/crmwarm/pkg/errors"
)

// gatewayVariables are set by web servers when executing a program as a CGI script.
var gatewayVariables = []string{"GATEWAY_INTERFACE", "REQUEST_METHOD", "SERVER_PROTOCOL"}

// EnsureCommandLine rejects execution through a web server gateway so the batch job
// cannot be triggered over the network.
func EnsureCommandLine(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	for _, name := range gatewayVariables {
		if strings.TrimSpace(getenv(name)) != "" {
			return apperrors.ErrNotCommandLine
		}
	}
	return nil
}
