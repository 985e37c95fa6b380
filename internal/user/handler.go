package user

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"highfive-server/internal/httpx"
)

const (
	maxJSONBodyBytes   = 1 << 20
	maxAvatarSizeBytes = 10 << 20
	maxBioLength       = 500
	maxFullNameLength  = 100
)

type Handler struct {
	repo     *Repository
	follows  *FollowMutator
	uploader ImageUploader
}

// ImageUploader is the avatar-hosting capability; the Cloudinary client in
// internal/media implements it.
type ImageUploader interface {
	UploadImage(ctx context.Context, imageSource string) (string, error)
}

func NewHandler(repo *Repository, follows *FollowMutator, uploader ImageUploader) *Handler {
	return &Handler{repo: repo, follows: follows, uploader: uploader}
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	u, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) EditUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	authID, ok := httpx.UserIDFromContext(r.Context())
	if !ok || authID != id {
		writeError(w, http.StatusForbidden, "you can only edit your own profile")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input ProfileInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	input.FullName = strings.TrimSpace(input.FullName)
	input.Bio = strings.TrimSpace(input.Bio)
	if input.FullName == "" {
		writeError(w, http.StatusUnprocessableEntity, "full name is required")
		return
	}
	if !utf8.ValidString(input.FullName) || len(input.FullName) > maxFullNameLength {
		writeError(w, http.StatusUnprocessableEntity, "full name is invalid")
		return
	}
	if !utf8.ValidString(input.Bio) || len(input.Bio) > maxBioLength {
		writeError(w, http.StatusUnprocessableEntity, "bio is invalid")
		return
	}

	u, err := h.repo.UpdateProfile(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) FollowUnfollow(w http.ResponseWriter, r *http.Request) {
	targetID := r.PathValue("id")
	if _, err := uuid.Parse(targetID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	actorID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	change, err := h.follows.Toggle(r.Context(), actorID, targetID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSelfFollow):
			writeError(w, http.StatusUnprocessableEntity, "cannot follow yourself")
		case errors.Is(err, sql.ErrNoRows):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			// Partial updates and storage faults alike stay internal.
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to update follow state")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"following": change.Following,
		"actor": map[string]any{
			"id":        change.ActorID,
			"following": change.ActorFollowing,
		},
		"target": map[string]any{
			"id":        change.TargetID,
			"followers": change.TargetFollowers,
		},
	})
}

func (h *Handler) ChangeAvatar(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeError(w, http.StatusInternalServerError, "image uploader is not configured")
		return
	}

	authID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := r.ParseMultipartForm(maxAvatarSizeBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarSizeBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read avatar file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "avatar file is empty")
		return
	}
	if len(data) > maxAvatarSizeBytes {
		writeError(w, http.StatusBadRequest, "avatar file is too large")
		return
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		writeError(w, http.StatusBadRequest, "avatar must be an image")
		return
	}

	imageSource := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
	photoURL, err := h.uploader.UploadImage(r.Context(), imageSource)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusBadGateway, "failed to upload avatar")
		return
	}

	u, err := h.repo.UpdateAvatar(r.Context(), authID, photoURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update avatar")
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
