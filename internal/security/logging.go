package security

import (
	"log/slog"

	"github.com/colsign/colsign-go/internal/logging"
)

// securityLogger is the shared logger for authentication and session events.
var securityLogger *slog.Logger

func init() {
	securityLogger = logging.ForService("security")
	if securityLogger == nil {
		securityLogger = slog.Default().With("service", "security")
	}
}
