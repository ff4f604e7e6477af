// Package backup keeps timestamped copies of the SQLite database file.
//
// A backup is the main file plus its -wal and -shm siblings when present,
// named academy_db_<YYYYMMDD_HHMMSS>_<reason>.db. Only the newest copies
// up to the retention limit are kept.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"academy/internal/core"
	applog "academy/internal/log"
)

const (
	filePrefix       = "academy_db_"
	fileSuffix       = ".db"
	timestampLayout  = "20060102_150405"
	DefaultRetention = 20
	maxReasonLen     = 50
)

// Reasons recorded by the application itself.
const (
	ReasonStartup           = "startup"
	ReasonManual            = "manual"
	ReasonBeforeRestore     = "before_restore"
	ReasonDashboard         = "auto_dashboard"
	ReasonAddCenter         = "auto_add_center"
	ReasonDeleteCenter      = "auto_delete_center"
	ReasonRemoveCenterMonth = "auto_remove_center_month"
	ReasonCoaches           = "auto_coaches"
	ReasonLeaves            = "auto_leaves"
	ReasonSettings          = "auto_settings"
)

var (
	ErrDisabled    = errors.New("backups are disabled for this backend")
	ErrNoDatabase  = errors.New("database file does not exist")
	ErrInvalidName = errors.New("invalid backup file name")

	validName = regexp.MustCompile(`^academy_db_[A-Za-z0-9_.\-]+\.db$`)
	siblings  = []string{"-wal", "-shm"}
)

type Info struct {
	Filename string
	Path     string
	SizeKB   float64
	Created  time.Time
}

type Manager struct {
	dbPath    string
	dir       string
	retention int
	now       func() time.Time
	logger    *applog.Logger
	mu        sync.Mutex
}

// New returns a manager for the SQLite file at dbPath. An empty dbPath
// yields a disabled manager.
func New(dbPath, dir string, retention int, logger *applog.Logger) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = applog.NewWithLevel(applog.ComponentBackup, applog.ParseLevel(""))
	}
	return &Manager{
		dbPath:    dbPath,
		dir:       dir,
		retention: retention,
		now:       time.Now,
		logger:    logger.WithComponent(applog.ComponentBackup),
	}
}

// Disabled returns a manager that skips every operation.
func Disabled(logger *applog.Logger) *Manager {
	return New("", "", 0, logger)
}

func (m *Manager) Enabled() bool { return m.dbPath != "" }

func (m *Manager) Dir() string { return m.dir }

// SanitizeReason makes a free-form reason safe for a file name.
func SanitizeReason(reason string) string {
	reason = core.SanitizeInput(reason, maxReasonLen)
	reason = strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(reason)
	if reason == "" {
		return ReasonManual
	}
	return reason
}

// Create copies the live database into the backup directory and prunes old
// copies beyond the retention limit.
func (m *Manager) Create(reason string) (Info, error) {
	if !m.Enabled() {
		return Info{}, ErrDisabled
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(reason)
}

func (m *Manager) create(reason string) (Info, error) {
	if _, err := os.Stat(m.dbPath); err != nil {
		if os.IsNotExist(err) {
			return Info{}, ErrNoDatabase
		}
		return Info{}, fmt.Errorf("stat database: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return Info{}, fmt.Errorf("create backup directory: %w", err)
	}

	now := m.now()
	name := filePrefix + now.Format(timestampLayout) + "_" + SanitizeReason(reason) + fileSuffix
	dst := filepath.Join(m.dir, name)

	if err := copyWithSiblings(m.dbPath, dst); err != nil {
		return Info{}, fmt.Errorf("copy database: %w", err)
	}
	for _, p := range append([]string{dst}, siblingPaths(dst)...) {
		if err := os.Chtimes(p, now, now); err != nil && !os.IsNotExist(err) {
			return Info{}, fmt.Errorf("stamp backup: %w", err)
		}
	}

	m.logger.Info("Backup created", applog.FieldBackupFile, name, applog.FieldReason, reason)

	if err := m.prune(); err != nil {
		m.logger.Warn("Backup cleanup failed", applog.FieldError, err)
	}
	return m.info(dst)
}

// Snapshot takes a backup before a mutation. Failures are logged and never
// block the caller.
func (m *Manager) Snapshot(ctx context.Context, reason string) {
	if !m.Enabled() {
		m.logger.DebugContext(ctx, "Backup skipped, manager disabled", applog.FieldReason, reason)
		return
	}
	if _, err := m.Create(reason); err != nil {
		m.logger.ErrorContext(ctx, "Backup failed", applog.FieldReason, reason, applog.FieldError, err)
	}
}

// List returns backups newest first.
func (m *Manager) List() ([]Info, error) {
	if !m.Enabled() {
		return nil, nil
	}
	paths, err := m.backupFiles()
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(paths))
	for i := len(paths) - 1; i >= 0; i-- {
		info, err := m.info(paths[i])
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// Path resolves a backup file name inside the backup directory.
func (m *Manager) Path(filename string) (string, error) {
	if !m.Enabled() {
		return "", ErrDisabled
	}
	if filepath.Base(filename) != filename || !validName.MatchString(filename) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	p := filepath.Join(m.dir, filename)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("backup %q: %w", filename, core.ErrNotFound)
		}
		return "", err
	}
	return p, nil
}

// Restore snapshots the current state as before_restore, then copies the
// named backup over the live database. The process must be restarted to
// pick up the restored file.
func (m *Manager) Restore(filename string) error {
	src, err := m.Path(filename)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.create(ReasonBeforeRestore); err != nil && !errors.Is(err, ErrNoDatabase) {
		m.logger.Error("Pre-restore backup failed", applog.FieldError, err)
	}

	if err := copyWithSiblings(src, m.dbPath); err != nil {
		return fmt.Errorf("restore %s: %w", filename, err)
	}
	// Drop live siblings the backup did not have so stale WAL frames are not replayed.
	for _, suffix := range siblings {
		if _, err := os.Stat(src + suffix); os.IsNotExist(err) {
			os.Remove(m.dbPath + suffix)
		}
	}

	m.logger.Info("Backup restored", applog.FieldBackupFile, filename, applog.FieldOperation, applog.OpRestore)
	return nil
}

// backupFiles returns backup paths oldest first (by mtime, then name).
func (m *Manager) backupFiles() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(m.dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	mtimes := make(map[string]time.Time, len(paths))
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			continue
		}
		mtimes[p] = st.ModTime()
	}
	sort.Slice(paths, func(i, j int) bool {
		a, b := mtimes[paths[i]], mtimes[paths[j]]
		if !a.Equal(b) {
			return a.Before(b)
		}
		return paths[i] < paths[j]
	})
	return paths, nil
}

func (m *Manager) prune() error {
	paths, err := m.backupFiles()
	if err != nil {
		return err
	}
	for len(paths) > m.retention {
		old := paths[0]
		paths = paths[1:]
		if err := os.Remove(old); err != nil {
			return err
		}
		for _, p := range siblingPaths(old) {
			os.Remove(p)
		}
		m.logger.Info("Old backup removed", applog.FieldBackupFile, filepath.Base(old))
	}
	return nil
}

func (m *Manager) info(path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Filename: filepath.Base(path),
		Path:     path,
		SizeKB:   core.Round2(float64(st.Size()) / 1024),
		Created:  st.ModTime(),
	}, nil
}

func siblingPaths(path string) []string {
	out := make([]string, 0, len(siblings))
	for _, s := range siblings {
		if _, err := os.Stat(path + s); err == nil {
			out = append(out, path+s)
		}
	}
	return out
}

func copyWithSiblings(src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return err
	}
	for _, s := range siblings {
		if _, err := os.Stat(src + s); err != nil {
			continue
		}
		if err := copyFile(src+s, dst+s); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
