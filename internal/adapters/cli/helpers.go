package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/fleetworks/wcs-go/internal/infrastructure/config"
)

const defaultDaemonAddress = "http://localhost:8080"

// resolveDaemonAddress resolves the daemon address for this invocation
// Priority: --address flag > WCS_ADDRESS env > user config default > built-in
func resolveDaemonAddress() string {
	if daemonAddress != "" {
		return daemonAddress
	}
	if addr := os.Getenv("WCS_ADDRESS"); addr != "" {
		return addr
	}

	userConfigHandler, err := config.NewUserConfigHandler()
	if err == nil {
		if userCfg, err := userConfigHandler.Load(); err == nil && userCfg.DefaultAddress != "" {
			return userCfg.DefaultAddress
		}
	}

	return defaultDaemonAddress
}

// newDaemonClient connects to the resolved daemon address
func newDaemonClient() (*DaemonClient, error) {
	address := resolveDaemonAddress()
	client, err := NewDaemonClient(address)
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon client for %s: %w", address, err)
	}
	return client, nil
}

// formatTimestamp renders a task timestamp, or "-" when unset
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// orDash substitutes "-" for empty table cells
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
