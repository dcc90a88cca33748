package backup

import (
	"os"
	"path/filepath"
)

func defaultRootCandidates() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, "Library", "Application Support", "MobileSync", "Backup")}
}
