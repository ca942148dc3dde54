// Command catctl encodes and decodes cross-application tracing headers.
package main

import (
	"os"

	"github.com/GriffinCanCode/apmtrace/internal/catctl"
)

func main() {
	if err := catctl.Execute(); err != nil {
		os.Exit(1)
	}
}
