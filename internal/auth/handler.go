package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body registerRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.FullName = strings.TrimSpace(body.FullName)
	if body.FullName == "" || body.Email == "" || body.Password == "" || body.ConfirmPassword == "" {
		writeError(w, http.StatusUnprocessableEntity, "all fields are required")
		return
	}
	if !emailRegex.MatchString(NormalizeEmail(body.Email)) {
		writeError(w, http.StatusUnprocessableEntity, "email format is invalid")
		return
	}
	if body.Password != body.ConfirmPassword {
		writeError(w, http.StatusUnprocessableEntity, "passwords do not match")
		return
	}
	if len(body.Password) < minPasswordLength {
		writeError(w, http.StatusUnprocessableEntity, "password must be at least 8 characters")
		return
	}

	created, err := h.service.Register(r.Context(), body.FullName, body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already in use")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "user " + created.FullName + " created successfully",
		"user":    created,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if strings.TrimSpace(body.Email) == "" || strings.TrimSpace(body.Password) == "" {
		writeError(w, http.StatusUnprocessableEntity, "all fields are required")
		return
	}

	session, err := h.service.Login(r.Context(), body.Email, body.Password, r.UserAgent())
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	setAccessCookie(w, session.AccessToken, int(h.service.AccessTTL().Seconds()))
	setRefreshCookie(w, RefreshCookie{JTI: session.RefreshID, Secret: session.RefreshSecret}, int(h.service.RefreshTTL().Seconds()))

	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": session.AccessToken,
		"user":        session.User,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	refresh, err := refreshFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	if err := h.service.Logout(r.Context(), refresh.JTI); err != nil {
		switch {
		case errors.Is(err, ErrRefreshTokenNotFound):
			writeError(w, http.StatusNotFound, "refresh token not found")
		case errors.Is(err, ErrInvalidRefreshToken):
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to logout")
		}
		return
	}

	clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "logged out"})
}

func (h *Handler) Renew(w http.ResponseWriter, r *http.Request) {
	refresh, err := refreshFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	access, err := h.service.Renew(r.Context(), refresh.JTI, refresh.Secret)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to renew access token")
		return
	}

	setAccessCookie(w, access, int(h.service.AccessTTL().Seconds()))
	writeJSON(w, http.StatusOK, map[string]any{"accessToken": access})
}

// refreshFromRequest decodes the refresh cookie. Anything unreadable, from a
// missing cookie to garbage base64 or JSON, reads as an invalid token rather
// than a server fault.
func refreshFromRequest(r *http.Request) (RefreshCookie, error) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return RefreshCookie{}, ErrInvalidRefreshToken
	}

	return decodeRefreshCookie(cookie.Value)
}

func decodeRefreshCookie(value string) (RefreshCookie, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return RefreshCookie{}, ErrInvalidRefreshToken
	}

	var rc RefreshCookie
	if err := json.Unmarshal(raw, &rc); err != nil {
		return RefreshCookie{}, ErrInvalidRefreshToken
	}
	if rc.JTI == "" || rc.Secret == "" {
		return RefreshCookie{}, ErrInvalidRefreshToken
	}

	return rc, nil
}

func encodeRefreshCookie(rc RefreshCookie) string {
	raw, _ := json.Marshal(rc)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func setAccessCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func setRefreshCookie(w http.ResponseWriter, rc RefreshCookie, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    encodeRefreshCookie(rc),
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
