// Package constants provides shared constants for the athan scheduler
package constants

import (
	"fmt"
	"strings"
)

// OutputTarget represents where an allowed athan is played
type OutputTarget string

const (
	// OutputServer plays on the machine running the scheduler
	OutputServer OutputTarget = "server"
	// OutputBrowser leaves playback to polling browser clients
	OutputBrowser OutputTarget = "browser"
	// OutputBoth plays on the server and lets browsers play as well
	OutputBoth OutputTarget = "both"
)

// IsValid checks if the output target value is valid
func (o OutputTarget) IsValid() bool {
	return o == OutputServer || o == OutputBrowser || o == OutputBoth
}

// String returns the string representation of the output target
func (o OutputTarget) String() string {
	return string(o)
}

// IncludesServer reports whether the server itself should play audio
func (o OutputTarget) IncludesServer() bool {
	return o == OutputServer || o == OutputBoth
}

// IncludesBrowser reports whether polling browser clients should play audio
func (o OutputTarget) IncludesBrowser() bool {
	return o == OutputBrowser || o == OutputBoth
}

// ParseOutputTarget parses a string into an OutputTarget, ignoring case and surrounding spaces
func ParseOutputTarget(s string) (OutputTarget, error) {
	target := OutputTarget(strings.ToLower(strings.TrimSpace(s)))
	if !target.IsValid() {
		return "", fmt.Errorf("invalid output target: %s (must be 'server', 'browser' or 'both')", s)
	}
	return target, nil
}

// GetAllOutputTargets returns all valid output targets in display order
func GetAllOutputTargets() []OutputTarget {
	return []OutputTarget{OutputServer, OutputBrowser, OutputBoth}
}
