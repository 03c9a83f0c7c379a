package backupmgr

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultMaxBackups = 5

	// backupMarker separates the save name from the timestamp in backup directory names.
	backupMarker    = ".Backup."
	timestampLayout = "2006-01-02.15_04_05"
)

// BackupConfig holds configuration for backup operations
type BackupConfig struct {
	SaveName   string
	SourceDir  string
	BackupRoot string
	MaxBackups int
	Identifier string
}

// BackupEntry is a backup directory found in the backup root
type BackupEntry struct {
	Path    string
	Name    string
	ModTime time.Time
}

// BackupManager rotates timestamped copies of a save directory
type BackupManager struct {
	config BackupConfig
	mu     sync.Mutex
	now    func() time.Time
	log    *logrus.Entry
}

// FilesystemError reports a failed scan, eviction or copy. Op is one of "scan", "evict", "copy".
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("backup %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
