package user

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"highfive-server/internal/httpx"
)

func TestFollowUnfollowHandler(t *testing.T) {
	t.Parallel()

	actorID := uuid.NewString()
	targetID := uuid.NewString()
	store := newMemFollowStore(actorID, targetID)
	handler := NewHandler(nil, NewFollowMutator(store), nil)

	follow := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/api/users/"+target+"/follow-unfollow", nil)
		req.SetPathValue("id", target)
		req = req.WithContext(httpx.ContextWithUserID(req.Context(), actorID))

		rec := httptest.NewRecorder()
		handler.FollowUnfollow(rec, req)
		return rec
	}

	rec := follow(targetID)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"following":true`)
	require.Contains(t, rec.Body.String(), actorID)

	rec = follow(targetID)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"following":false`)

	rec = follow(actorID)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = follow(uuid.NewString())
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = follow("not-a-uuid")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFollowUnfollowHandler_Unauthenticated(t *testing.T) {
	t.Parallel()

	store := newMemFollowStore()
	handler := NewHandler(nil, NewFollowMutator(store), nil)

	targetID := uuid.NewString()
	req := httptest.NewRequest(http.MethodPatch, "/api/users/"+targetID+"/follow-unfollow", nil)
	req.SetPathValue("id", targetID)

	rec := httptest.NewRecorder()
	handler.FollowUnfollow(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEditUserHandler_OwnerOnly(t *testing.T) {
	t.Parallel()

	handler := NewHandler(nil, nil, nil)

	profileID := uuid.NewString()
	req := httptest.NewRequest(http.MethodPatch, "/api/users/"+profileID, strings.NewReader(`{"fullName":"New Name","bio":"hi"}`))
	req.SetPathValue("id", profileID)
	req = req.WithContext(httpx.ContextWithUserID(req.Context(), uuid.NewString()))

	rec := httptest.NewRecorder()
	handler.EditUser(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
