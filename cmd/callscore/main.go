package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/callscale/callscore/internal/orchestration"
)

// Exit codes for different failure modes
const (
	ExitSuccess = 0 // Scorecard produced
	ExitPartial = 1 // Run finished but one or more criteria failed
	ExitError   = 2 // Configuration or runtime error
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		// Check error type to determine exit code
		var partialErr *orchestration.PartialEvaluationError
		if errors.As(err, &partialErr) {
			os.Exit(ExitPartial)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
