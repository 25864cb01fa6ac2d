package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/vytor/bizquest/internal/errors"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
)

const (
	oauthStateCookie = "bizquest_oauth_state"
	oauthNextCookie  = "bizquest_oauth_next"
)

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"max=200"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "pages/signup.html", pageData{
		"next":  safeNext(r.URL.Query().Get("next")),
		"email": "",
	})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if userFromContext(r.Context()) != nil {
		http.Redirect(w, r, safeNext(r.URL.Query().Get("next")), http.StatusSeeOther)
		return
	}
	s.render(w, r, "pages/login.html", pageData{
		"next":  safeNext(r.URL.Query().Get("next")),
		"email": "",
		"error": r.URL.Query().Get("error"),
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if isJSONRequest(r) {
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
	} else {
		req = signupRequest{Email: r.FormValue("email"), Password: r.FormValue("password"), FullName: r.FormValue("full_name")}
		if err := validate.Struct(req); err != nil {
			s.renderAuthError(w, r, "pages/signup.html", validationError(err))
			return
		}
	}

	user, err := s.AuthService.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		if isJSONRequest(r) {
			handleError(w, r, err)
		} else {
			s.renderAuthError(w, r, "pages/signup.html", err)
		}
		return
	}
	s.startSession(w, r, user, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isJSONRequest(r) {
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
	} else {
		req = loginRequest{Email: r.FormValue("email"), Password: r.FormValue("password")}
		if err := validate.Struct(req); err != nil {
			s.renderAuthError(w, r, "pages/login.html", validationError(err))
			return
		}
	}

	user, err := s.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if isJSONRequest(r) {
			handleError(w, r, err)
		} else {
			s.renderAuthError(w, r, "pages/login.html", err)
		}
		return
	}
	s.startSession(w, r, user, http.StatusOK)
}

// startSession issues a session for user, then answers with JSON or a redirect.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	token, _, err := s.Sessions.Issue(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, errors.NewInternalError(err))
		return
	}
	s.setSessionCookie(w, token)

	if isJSONRequest(r) {
		writeJSON(w, r, status, map[string]any{"user": user, "token": token})
		return
	}
	http.Redirect(w, r, safeNext(r.FormValue("next")), http.StatusSeeOther)
}

func (s *Server) renderAuthError(w http.ResponseWriter, r *http.Request, page string, err error) {
	appErr, ok := errors.As(err)
	if !ok || appErr.Status >= 500 {
		handleError(w, r, err)
		return
	}
	s.renderStatus(w, r, appErr.Status, page, pageData{
		"error": appErr.Message,
		"email": r.FormValue("email"),
		"next":  safeNext(r.FormValue("next")),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.Sessions.Revoke(r.Context(), token); err != nil {
			logger.FromContext(r.Context()).Warn("failed to revoke session: %v", err)
		}
	}
	s.clearSessionCookie(w)

	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func randomState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if s.OAuth == nil {
		handleError(w, r, errors.NewNotFoundError("oauth provider", "default"))
		return
	}

	state := randomState()
	expires := time.Now().Add(10 * time.Minute)
	for name, value := range map[string]string{
		oauthStateCookie: state,
		oauthNextCookie:  safeNext(r.URL.Query().Get("next")),
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/auth",
			Expires:  expires,
			HttpOnly: true,
			Secure:   s.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.Redirect(w, r, s.OAuth.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) clearOAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{oauthStateCookie, oauthNextCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/auth", MaxAge: -1, HttpOnly: true})
	}
}

// handleOAuthCallback finishes the provider login. It always ends in a
// redirect to next; a failed exchange or profile write only gets logged.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	next := r.URL.Query().Get("next")
	if next == "" {
		if c, err := r.Cookie(oauthNextCookie); err == nil {
			next = c.Value
		}
	}
	next = safeNext(next)
	defer http.Redirect(w, r, next, http.StatusSeeOther)
	defer s.clearOAuthCookies(w)

	code := r.URL.Query().Get("code")
	if code == "" || s.OAuth == nil {
		return
	}
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(r.URL.Query().Get("state"))) != 1 {
		log.Warn("oauth callback with missing or mismatched state")
		return
	}

	identity, err := s.OAuth.Exchange(ctx, code)
	if err != nil {
		log.Warn("oauth code exchange failed: %v", err)
		return
	}
	user, err := s.AuthService.EnsureOAuthUser(ctx, *identity)
	if err != nil {
		log.Error("error creating user profile: %v", err)
		return
	}
	token, _, err := s.Sessions.Issue(ctx, user.ID)
	if err != nil {
		log.Error("failed to issue session: %v", err)
		return
	}
	s.setSessionCookie(w, token)
}
