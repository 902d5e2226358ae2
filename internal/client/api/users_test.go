package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/makerhub/internal/model"
)

func TestUsers_AdminCalls(t *testing.T) {
	var roleBody, statusBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "admin", r.URL.Query().Get("role"))
		require.Equal(t, "ada", r.URL.Query().Get("search"))
		writeJSON(w, http.StatusOK, model.NewPage([]model.User{{Username: "ada", Role: "admin"}}, 1, 1, 20))
	})
	mux.HandleFunc("PUT /users/{id}/role", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "u1", r.PathValue("id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&roleBody))
		writeJSON(w, http.StatusOK, model.APIResponse{Success: true, Message: "User role updated to admin"})
	})
	mux.HandleFunc("PUT /users/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&statusBody))
		writeJSON(w, http.StatusOK, model.APIResponse{Success: true, Message: "User deactivated successfully"})
	})
	mux.HandleFunc("DELETE /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.APIResponse{Success: true, Message: "User deleted successfully"})
	})
	c, _ := newTestClient(t, mux, &model.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	ctx := context.Background()

	page, err := c.Users().List(ctx, ListParams{Role: "admin", Search: "ada"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	resp, err := c.SetUserRole(ctx, "u1", "admin")
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, map[string]any{"role": "admin"}, roleBody)

	resp, err = c.SetUserActive(ctx, "u1", false)
	require.NoError(t, err)
	require.Equal(t, "User deactivated successfully", resp.Message)
	require.Equal(t, map[string]any{"is_active": false}, statusBody)

	require.NoError(t, c.Users().Delete(ctx, "u1"))
}

func TestUsers_ForbiddenSurfacesDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /users/{id}/role", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Not enough permissions"})
	})
	c, _ := newTestClient(t, mux, &model.TokenPair{AccessToken: "a1", RefreshToken: "r1"})

	_, err := c.SetUserRole(context.Background(), "u1", "admin")
	require.True(t, IsStatus(err, http.StatusForbidden))
	require.False(t, IsAuthFailure(err))
	require.Contains(t, err.Error(), "Not enough permissions")
}
