package backup

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// Both the iTunes desktop installer and the Microsoft Store build are covered. The Store build keeps
// its backups under the user profile rather than under roaming app data.
func defaultRootCandidates() []string {
	var candidates []string
	appData, err := windows.KnownFolderPath(windows.FOLDERID_RoamingAppData, windows.KF_FLAG_DEFAULT)
	if err != nil || appData == "" {
		appData = os.Getenv("APPDATA")
	}
	if appData != "" {
		candidates = append(candidates,
			filepath.Join(appData, "Apple Computer", "MobileSync", "Backup"),
			filepath.Join(appData, "Apple", "MobileSync", "Backup"),
		)
	}
	if profile := os.Getenv("USERPROFILE"); profile != "" {
		candidates = append(candidates,
			filepath.Join(profile, "Apple", "MobileSync", "Backup"),
			filepath.Join(profile, "AppData", "Roaming", "Apple Computer", "MobileSync", "Backup"),
		)
	}
	return candidates
}
