package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/christo725/seen/internal/config"
	"github.com/christo725/seen/internal/gemini"
	"github.com/christo725/seen/internal/model"
	"github.com/christo725/seen/internal/store"
	"github.com/christo725/seen/internal/verify"
)

type testEnv struct {
	server *Server
	store  *store.Store
	media  *httptest.Server
}

// newTestEnv wires the full stack against stub media and model providers. The
// model always answers with a verified result.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg bytes"))
	}))
	t.Cleanup(media.Close)

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": [{"content": {"parts": [{"text": "{\"status\": \"verified\", \"result\": \"Checks out.\"}"}]}}]}`)
	}))
	t.Cleanup(provider.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "seen-test.db"), zap.NewNop())
	require.NoError(t, err)

	client := gemini.NewClient(gemini.Config{
		APIKey:  "test-key",
		BaseURL: provider.URL + "/v1beta",
		Model:   "gemini-2.5-flash",
	}, zap.NewNop())

	verifier := verify.New(st, client, nil, config.VerificationConfig{
		BatchLimit:   10,
		PollInterval: "1ms",
		PollTimeout:  "50ms",
	}, zap.NewNop())

	return &testEnv{
		server: New(st, verifier, zap.NewNop()),
		store:  st,
		media:  media,
	}
}

func (e *testEnv) do(t *testing.T, method, path, owner string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req.Header.Set("X-User-ID", owner)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Engine().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateUpload(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/uploads", "alice", map[string]interface{}{
		"media_url":       env.media.URL + "/photo.jpg",
		"media_kind":      "image",
		"description":     "Golden hour at the pier",
		"latitude":        34.01,
		"longitude":       -118.49,
		"location_source": "exif",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	stored, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.OwnerID)
	assert.Equal(t, model.MediaKindImage, stored.MediaKind)
}

func TestCreateUpload_RequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "POST", "/api/uploads", "", map[string]interface{}{
		"media_url":  "https://media.example/a.jpg",
		"media_kind": "image",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateUpload_Validation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing media url", map[string]interface{}{"media_kind": "image"}},
		{"bad media kind", map[string]interface{}{"media_url": "https://m/a.gif", "media_kind": "gif"}},
		{"latitude without longitude", map[string]interface{}{"media_url": "https://m/a.jpg", "media_kind": "image", "latitude": 34.0}},
		{"latitude out of range", map[string]interface{}{"media_url": "https://m/a.jpg", "media_kind": "image", "latitude": 95.0, "longitude": 0.0}},
		{"bad location source", map[string]interface{}{"media_url": "https://m/a.jpg", "media_kind": "image", "location_source": "guess"}},
		{"description too long", map[string]interface{}{"media_url": "https://m/a.jpg", "media_kind": "image", "description": strings.Repeat("x", model.MaxDescriptionLen+1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/uploads", "alice", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestGetUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.Create(ctx, &model.Upload{
		ID: "u1", OwnerID: "alice", MediaURL: "https://m/a.jpg", MediaKind: model.MediaKindImage,
	}))

	w := env.do(t, "GET", "/api/uploads/u1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/uploads/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListUploads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.Create(ctx, &model.Upload{
		ID: "u1", OwnerID: "alice", MediaURL: "https://m/a.jpg", MediaKind: model.MediaKindImage,
	}))
	require.NoError(t, env.store.Create(ctx, &model.Upload{
		ID: "u2", OwnerID: "bob", MediaURL: "https://m/b.jpg", MediaKind: model.MediaKindImage,
	}))

	w := env.do(t, "GET", "/api/uploads?owner=alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["count"])

	w = env.do(t, "GET", "/api/uploads?since=not-a-time", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.Create(ctx, &model.Upload{
		ID: "u1", OwnerID: "alice", MediaURL: "https://m/a.jpg", MediaKind: model.MediaKindImage,
	}))

	w := env.do(t, "DELETE", "/api/uploads/u1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, "DELETE", "/api/uploads/u1", "mallory", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, "DELETE", "/api/uploads/u1", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/uploads/u1", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyUploadEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.Create(ctx, &model.Upload{
		ID: "u1", OwnerID: "alice", MediaURL: env.media.URL + "/a.jpg", MediaKind: model.MediaKindImage,
	}))

	w := env.do(t, "POST", "/api/uploads/u1/verify", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "verified", result["status"])
	assert.Equal(t, true, result["verified"])

	stored, err := env.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, stored.VerificationStatus)
}

func TestVerifyUploadEndpoint_NotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "POST", "/api/uploads/missing/verify", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyPendingEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 1; i <= 2; i++ {
		require.NoError(t, env.store.Create(ctx, &model.Upload{
			ID:        fmt.Sprintf("u%d", i),
			OwnerID:   "alice",
			MediaURL:  env.media.URL + "/a.jpg",
			MediaKind: model.MediaKindImage,
		}))
	}

	w := env.do(t, "POST", "/api/verify/pending", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, float64(2), body["processed"])
	assert.Equal(t, float64(0), body["failed"])
}
