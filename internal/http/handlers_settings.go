package http

import (
	"net/http"

	applog "academy/internal/log"
)

type settingsView struct {
	CurrentUsername string
	Message         string
	Error           string
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.renderSettings(w, r, http.StatusOK, settingsView{})
}

func (s *Server) renderSettings(w http.ResponseWriter, r *http.Request, status int, view settingsView) {
	sess := sessionFrom(r.Context())
	u, err := s.Accounts.User(r.Context(), sess.UserID)
	if err != nil {
		msg, code := s.userMessage(r, err, "settings")
		http.Error(w, msg, code)
		return
	}
	view.CurrentUsername = u.Username
	s.render(w, r, status, "settings", "Settings", view)
}

func (s *Server) handleSettingsAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		s.renderSettings(w, r, http.StatusBadRequest, settingsView{Error: "Invalid request"})
		return
	}
	sess := sessionFrom(ctx)

	var view settingsView
	var err error
	switch r.PostForm.Get("action") {
	case "change_username":
		var username string
		username, err = s.Accounts.ChangeUsername(ctx, sess.UserID,
			r.PostForm.Get("new_username"), r.PostForm.Get("current_password"))
		if err == nil {
			if rerr := s.Gate.Rename(ctx, sess.UserID, username); rerr != nil {
				s.logger.WarnContext(ctx, "Could not rename live sessions",
					applog.FieldUserID, sess.UserID,
					applog.FieldError, rerr)
			}
			view.Message = "Username updated successfully!"
		}
	case "change_password":
		err = s.Accounts.ChangePassword(ctx, sess.UserID,
			r.PostForm.Get("current_password_pwd"),
			r.PostForm.Get("new_password"),
			r.PostForm.Get("confirm_password"))
		if err == nil {
			view.Message = "Password updated successfully!"
		}
	default:
		s.renderSettings(w, r, http.StatusBadRequest, settingsView{Error: "Unknown action"})
		return
	}

	status := http.StatusOK
	if err != nil {
		view.Error, status = s.userMessage(r, err, "settings")
	}
	s.renderSettings(w, r, status, view)
}
