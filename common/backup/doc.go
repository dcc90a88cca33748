// Package backup reads iTunes and Finder device backups ("MobileSync" backups).
//
// A backup root holds one directory per device, named by the device identifier. Each device
// directory contains a manifest describing every file that was backed up (Manifest.db on current
// systems, Manifest.mbdb on older ones) and the file contents themselves, stored under their
// storage key: the SHA-1 of "<domain>-<relative path>", fanned out into directories named by the
// first two hex characters of the key.
//
// Typical use is to open a Session on a backup root, select a device and then query its manifest:
//
//	s, err := backup.NewSession("")
//	...
//	if _, err := s.SelectLatest(ctx); err != nil {
//		...
//	}
//	data, err := s.ReadFile("com.apple.Pages", "Documents/notes.txt")
//
// Encrypted backups are detected and rejected with ErrEncryptedBackup.
package backup
