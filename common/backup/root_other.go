//go:build !darwin && !windows

package backup

import (
	"os"
	"path/filepath"
)

// There is no official backup client outside of macOS and Windows. libimobiledevice based tools
// commonly write here.
func defaultRootCandidates() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".local", "share", "MobileSync", "Backup")}
}
