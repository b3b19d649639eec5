package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/tonimelisma/galaxykit-go/internal/galaxy"
)

// Process exit codes. Scripts driving test suites match on these.
const (
	exitOK            = 0
	exitUnknown       = 1
	exitNotFound      = 2
	exitDuplicate     = 4
	exitServerVersion = 8
)

var (
	errorLabel   = color.New(color.FgRed)
	failureLabel = color.New(color.FgRed, color.Bold)
)

// exitCode maps an error to its process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, galaxy.ErrUnsupportedServer):
		return exitServerVersion
	case errors.Is(err, galaxy.ErrDuplicate), errors.Is(err, galaxy.ErrConflict):
		return exitDuplicate
	case errors.Is(err, galaxy.ErrNotFound):
		return exitNotFound
	default:
		return exitUnknown
	}
}

// ignorable reports whether --ignore suppresses err. Configuration,
// credential and server-version failures are never suppressed.
func ignorable(err error) bool {
	if errors.Is(err, galaxy.ErrUnsupportedServer) || errors.Is(err, galaxy.ErrCredential) {
		return false
	}

	var apiErr *galaxy.APIError

	return errors.Is(err, galaxy.ErrNotFound) ||
		errors.Is(err, galaxy.ErrDuplicate) ||
		errors.As(err, &apiErr)
}

// reportError prints err to w and returns the exit code. Under --ignore an
// ignorable error prints nothing and exits 0.
func reportError(w io.Writer, err error) int {
	if err == nil {
		return exitOK
	}

	if flagIgnore && ignorable(err) {
		return exitOK
	}

	if flagJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"error": err.Error(), "exit_code": exitCode(err)})

		return exitCode(err)
	}

	var apiErr *galaxy.APIError
	if errors.As(err, &apiErr) && len(apiErr.Errors) > 0 {
		for _, d := range apiErr.Errors {
			failureLabel.Fprintln(w, apiFailureLine(apiErr.StatusCode, d))
		}
	}

	errorLabel.Fprintf(w, "Error: %v\n", err)

	return exitCode(err)
}

// apiFailureLine renders one structured error entry.
func apiFailureLine(status int, d galaxy.ErrorDetail) string {
	return fmt.Sprintf("API Failure: HTTP %d %s; %s (%s)", status, d.Code, d.Title, d.Detail)
}
