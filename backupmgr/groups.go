package backupmgr

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// isBackupName reports whether a directory name belongs to saveName's backups
func isBackupName(name, saveName string) bool {
	return strings.Contains(name, saveName+backupMarker)
}

// scanBackups lists the backup directories for saveName in root, oldest first.
// Entries with the same modification time are ordered by name.
func scanBackups(root, saveName string) ([]BackupEntry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var backups []BackupEntry
	for _, entry := range entries {
		if !isBackupName(entry.Name(), saveName) {
			continue
		}

		fullPath := filepath.Join(root, entry.Name())
		// Stat follows symlinks, so a linked backup directory still counts
		info, err := os.Stat(fullPath)
		if err != nil || !info.IsDir() {
			continue
		}

		backups = append(backups, BackupEntry{
			Path:    fullPath,
			Name:    entry.Name(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if !backups[i].ModTime.Equal(backups[j].ModTime) {
			return backups[i].ModTime.Before(backups[j].ModTime)
		}
		return backups[i].Name < backups[j].Name
	})

	return backups, nil
}
