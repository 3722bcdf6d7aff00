package debug

import (
	"os"

	"github.com/kayz/dashgen/internal/logger"
)

// enabled is set via ldflags for debug builds
var enabled = ""

// Enabled reports whether debug output was requested at build time or via
// DASHGEN_DEBUG=1.
var Enabled = false

func init() {
	if enabled == "true" {
		Enabled = true
	}
	if os.Getenv("DASHGEN_DEBUG") == "1" {
		Enabled = true
	}
}

// Log writes a debug record when debug mode is enabled
func Log(format string, args ...any) {
	if Enabled {
		logger.Debug("[DEBUG] "+format, args...)
	}
}
