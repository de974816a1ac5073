package log

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const runIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewRunID returns a short random identifier used to correlate the log lines
// of a single invocation.
func NewRunID() (string, error) {
	id, err := nanoid.Generate(runIDAlphabet, 8)
	if err != nil {
		return "", fmt.Errorf("run id: %w", err)
	}
	return id, nil
}
