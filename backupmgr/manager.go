package backupmgr

import (
	"fmt"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"
	"github.com/sirupsen/logrus"
)

/*
The BackupManager keeps at most MaxBackups timestamped copies of a save directory. There is no
index or manifest: every call re-reads the backup root, so a rotation costs one directory scan.
Calls are not guarded against each other beyond the manager's mutex; two managers pointed at the
same backup root may evict each other's copies.
*/

// RotateAndBackup evicts the oldest backup when the limit is reached and copies the save directory
// into a new timestamped backup. A missing backup root is created and no eviction takes place.
// An eviction failure aborts before anything is copied; a copy failure leaves the partial copy.
func (m *BackupManager) RotateAndBackup() (BackupEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	root := m.config.BackupRoot

	if _, err := os.Stat(root); os.IsNotExist(err) {
		m.log.WithField("root", root).Debugln("Backup root does not exist yet, creating it")
		if err := os.MkdirAll(root, os.ModePerm); err != nil {
			return BackupEntry{}, &FilesystemError{Op: "scan", Path: root, Err: err}
		}
	} else if err != nil {
		return BackupEntry{}, &FilesystemError{Op: "scan", Path: root, Err: err}
	} else if err := m.evictOldest(); err != nil {
		return BackupEntry{}, err
	}

	name := m.backupName()
	dst := filepath.Join(root, name)

	if err := cp.Copy(m.config.SourceDir, dst); err != nil {
		m.log.WithFields(logrus.Fields{
			"src": m.config.SourceDir,
			"dst": dst,
			"err": err,
		}).Errorln("Copying save directory failed")
		return BackupEntry{}, &FilesystemError{Op: "copy", Path: dst, Err: err}
	}

	entry := BackupEntry{Path: dst, Name: name}
	if info, err := os.Stat(dst); err == nil {
		entry.ModTime = info.ModTime()
	}

	m.log.WithField("path", dst).Infoln("Backup successfully created")
	return entry, nil
}

// evictOldest removes the single oldest backup when the count has reached MaxBackups.
func (m *BackupManager) evictOldest() error {
	backups, err := scanBackups(m.config.BackupRoot, m.config.SaveName)
	if err != nil {
		return &FilesystemError{Op: "scan", Path: m.config.BackupRoot, Err: err}
	}

	if len(backups) < m.config.MaxBackups {
		return nil
	}

	oldest := backups[0]
	if err := os.RemoveAll(oldest.Path); err != nil {
		m.log.WithFields(logrus.Fields{
			"path": oldest.Path,
			"err":  err,
		}).Errorln("Removing oldest backup failed")
		return &FilesystemError{Op: "evict", Path: oldest.Path, Err: err}
	}

	m.log.WithFields(logrus.Fields{
		"path":  oldest.Path,
		"count": len(backups),
		"max":   m.config.MaxBackups,
	}).Debugln("Evicted oldest backup")
	return nil
}

// backupName formats <SaveName>.Backup.<YYYY-MM-DD>.<HH>_<MM>_<SS> in local time.
// Two backups within the same second share a name and are merged.
func (m *BackupManager) backupName() string {
	return m.config.SaveName + backupMarker + m.now().Local().Format(timestampLayout)
}

// ListBackups returns information about available backups
// limit: number of recent backups to return (0 for all)
func (m *BackupManager) ListBackups(limit int) ([]BackupEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	backups, err := scanBackups(m.config.BackupRoot, m.config.SaveName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("backup dir %s doesn't seem to exist (yet), no backup was made so far: %w", m.config.BackupRoot, err)
		}
		return nil, &FilesystemError{Op: "scan", Path: m.config.BackupRoot, Err: err}
	}

	// newest first
	for i, j := 0, len(backups)-1; i < j; i, j = i+1, j-1 {
		backups[i], backups[j] = backups[j], backups[i]
	}

	if limit > 0 && limit < len(backups) {
		backups = backups[:limit]
	}

	return backups, nil
}
