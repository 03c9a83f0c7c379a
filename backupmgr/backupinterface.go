package backupmgr

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Option customizes a BackupManager
type Option func(*BackupManager)

// WithClock sets the clock used to timestamp new backups
func WithClock(now func() time.Time) Option {
	return func(m *BackupManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the log entry the manager writes to
func WithLogger(entry *logrus.Entry) Option {
	return func(m *BackupManager) {
		if entry != nil {
			m.log = entry
		}
	}
}

// NewIdentifier returns a short instance tag used to tell managers apart in the logs
func NewIdentifier() string {
	id := uuid.New()
	return "[BM" + id.String()[:6] + "]"
}

// NewBackupConfig returns a properly configured BackupConfig with a fresh identifier
func NewBackupConfig(saveName, sourceDir, backupRoot string, maxBackups int) BackupConfig {
	return BackupConfig{
		SaveName:   saveName,
		SourceDir:  sourceDir,
		BackupRoot: backupRoot,
		MaxBackups: maxBackups,
		Identifier: NewIdentifier(),
	}
}

// NewBackupManager creates a new BackupManager instance
func NewBackupManager(cfg BackupConfig, opts ...Option) *BackupManager {
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = defaultMaxBackups
	}
	if cfg.Identifier == "" {
		cfg.Identifier = NewIdentifier()
	}

	m := &BackupManager{
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logrus.NewEntry(logrus.StandardLogger())
	}
	m.log = m.log.WithFields(logrus.Fields{
		"instance": cfg.Identifier,
		"save":     cfg.SaveName,
	})

	return m
}

// Config returns the configuration the manager was built with
func (m *BackupManager) Config() BackupConfig {
	return m.config
}
