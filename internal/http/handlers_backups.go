package http

import (
	"errors"
	"fmt"
	"net/http"

	"academy/internal/backup"
	"academy/internal/core"
	applog "academy/internal/log"
)

type backupsView struct {
	Enabled bool
	Dir     string
	Backups []backup.Info
}

func (s *Server) handleBackups(w http.ResponseWriter, r *http.Request) {
	list, err := s.Backups.List()
	if err != nil {
		msg, status := s.userMessage(r, err, "backups")
		http.Error(w, msg, status)
		return
	}
	s.render(w, r, http.StatusOK, "backups", "Backups", backupsView{
		Enabled: s.Backups.Enabled(),
		Dir:     s.Backups.Dir(),
		Backups: list,
	})
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.badForm(w, r, "/backups")
		return
	}
	info, err := s.Backups.Create(backup.SanitizeReason(r.PostForm.Get("reason")))
	switch {
	case err == nil:
		s.flash(w, flashSuccess, "Backup created successfully: "+info.Filename)
	case errors.Is(err, backup.ErrDisabled):
		s.flash(w, flashInfo, "Backups are not available for this database")
	default:
		s.backupLogger(r).ErrorContext(r.Context(), "Backup failed", applog.FieldError, err)
		s.flash(w, flashError, "Failed to create backup")
	}
	http.Redirect(w, r, "/backups", http.StatusSeeOther)
}

func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	err := s.Backups.Restore(name)
	switch {
	case err == nil:
		s.backupLogger(r).WarnContext(r.Context(), "Database restored from backup",
			applog.FieldBackupFile, name,
			applog.FieldUserID, sessionFrom(r.Context()).UserID)
		s.flash(w, flashSuccess, fmt.Sprintf("Database restored from %s. Please restart the application.", name))
	default:
		s.flash(w, flashError, s.backupError(r, err, applog.OpRestore))
	}
	http.Redirect(w, r, "/backups", http.StatusSeeOther)
}

func (s *Server) handleDownloadBackup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	p, err := s.Backups.Path(name)
	if err != nil {
		s.flash(w, flashError, s.backupError(r, err, "backup_download"))
		http.Redirect(w, r, "/backups", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, p)
}

func (s *Server) backupError(r *http.Request, err error, op string) string {
	switch {
	case errors.Is(err, backup.ErrDisabled):
		return "Backups are not available for this database"
	case errors.Is(err, backup.ErrInvalidName), errors.Is(err, core.ErrNotFound):
		return "Backup file not found"
	}
	s.backupLogger(r).ErrorContext(r.Context(), "Backup operation failed",
		applog.FieldOperation, op,
		applog.FieldError, err)
	return genericError
}

func (s *Server) backupLogger(r *http.Request) *applog.Logger {
	return applog.FromContext(r.Context()).WithComponent(applog.ComponentBackup)
}
