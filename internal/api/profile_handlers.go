package api

import (
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/vytor/bizquest/internal/errors"
	"github.com/vytor/bizquest/internal/models"
)

type profileUpdateRequest struct {
	FullName     *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	BusinessType *string `json:"business_type" validate:"omitempty,max=100"`
	BusinessSize *string `json:"business_size" validate:"omitempty,max=100"`
}

func (p profileUpdateRequest) update() models.ProfileUpdate {
	return models.ProfileUpdate{FullName: p.FullName, BusinessType: p.BusinessType, BusinessSize: p.BusinessSize}
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.ProfileService.GetProfile(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	user, err := s.ProfileService.UpdateProfile(r.Context(), userIDFromContext(r.Context()), req.update())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	err := s.ProfileService.ChangePassword(r.Context(), userIDFromContext(r.Context()),
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// avatarFile opens the "avatar" part of a multipart upload.
func (s *Server) avatarFile(w http.ResponseWriter, r *http.Request) (multipart.File, error) {
	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxAvatarBytes+64<<10)
	if err := r.ParseMultipartForm(s.MaxAvatarBytes); err != nil {
		return nil, errors.NewValidationError("avatar", "upload is too large or malformed")
	}
	f, _, err := r.FormFile("avatar")
	if err != nil {
		return nil, errors.NewValidationError("avatar", "is required")
	}
	return f, nil
}

func (s *Server) uploadAvatar(w http.ResponseWriter, r *http.Request) (*models.User, error) {
	f, err := s.avatarFile(w, r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.ProfileService.UploadAvatar(r.Context(), userIDFromContext(r.Context()), f)
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, err := s.uploadAvatar(w, r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) handleRemoveAvatar(w http.ResponseWriter, r *http.Request) {
	user, err := s.ProfileService.RemoveAvatar(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	user, err := s.ProfileService.GetProfile(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	achievements, err := s.AchievementService.ListForUser(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	s.render(w, r, "pages/profile.html", pageData{
		"user":         user,
		"achievements": achievements,
		"flash":        r.URL.Query().Get("flash"),
		"error":        r.URL.Query().Get("error"),
	})
}

// redirectProfile finishes a profile form post. Client errors are shown on
// the page; anything else goes through handleError.
func redirectProfile(w http.ResponseWriter, r *http.Request, err error, flash string) {
	if err != nil {
		appErr, ok := errors.As(err)
		if !ok || appErr.Status >= 500 {
			handleError(w, r, err)
			return
		}
		http.Redirect(w, r, "/profile?error="+url.QueryEscape(appErr.Message), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/profile?flash="+url.QueryEscape(flash), http.StatusSeeOther)
}

func optionalForm(r *http.Request, key string) *string {
	if _, ok := r.PostForm[key]; !ok {
		return nil
	}
	v := strings.TrimSpace(r.PostForm.Get(key))
	return &v
}

func (s *Server) handleProfileForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectProfile(w, r, errors.NewBadRequestError("Invalid form"), "")
		return
	}
	req := profileUpdateRequest{
		FullName:     optionalForm(r, "full_name"),
		BusinessType: optionalForm(r, "business_type"),
		BusinessSize: optionalForm(r, "business_size"),
	}
	if err := validate.Struct(req); err != nil {
		redirectProfile(w, r, validationError(err), "")
		return
	}
	_, err := s.ProfileService.UpdateProfile(r.Context(), userIDFromContext(r.Context()), req.update())
	redirectProfile(w, r, err, "Profile updated")
}

func (s *Server) handlePasswordForm(w http.ResponseWriter, r *http.Request) {
	err := s.ProfileService.ChangePassword(r.Context(), userIDFromContext(r.Context()),
		r.FormValue("current_password"), r.FormValue("new_password"), r.FormValue("confirm_password"))
	redirectProfile(w, r, err, "Password changed")
}

func (s *Server) handleAvatarForm(w http.ResponseWriter, r *http.Request) {
	_, err := s.uploadAvatar(w, r)
	redirectProfile(w, r, err, "Avatar updated")
}

func (s *Server) handleAvatarDeleteForm(w http.ResponseWriter, r *http.Request) {
	_, err := s.ProfileService.RemoveAvatar(r.Context(), userIDFromContext(r.Context()))
	redirectProfile(w, r, err, "Avatar removed")
}
