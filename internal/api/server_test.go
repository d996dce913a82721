package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-go/internal/api"
	"collab-go/internal/auth"
	"collab-go/internal/collab"
	"collab-go/internal/dispatch"
	"collab-go/internal/model"
	"collab-go/internal/testutil"
)

type harness struct {
	t      *testing.T
	fx     *testutil.Fixture
	auth   *auth.Authenticator
	hub    *dispatch.Hub
	server *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	authenticator, err := auth.New([]byte("test-secret-test-secret-test-secret"), "collab")
	require.NoError(t, err)

	// Wire the service to publish into a real hub so websocket delivery is
	// exercised end to end.
	fx := testutil.NewFixture(t)
	hub := dispatch.NewHub(collab.NewNopLogger(), nil)
	t.Cleanup(hub.Close)
	fx.Service = collab.NewService(fx.DB, fx.Archive, fx.DB, fx.DB, hub,
		collab.NewNopLogger(), collab.RealClock{}, fx.IDs, collab.DefaultOptions())

	srv := httptest.NewServer(api.NewServer(fx.Service, authenticator, hub, collab.NewNopLogger()))
	t.Cleanup(srv.Close)
	return &harness{t: t, fx: fx, auth: authenticator, hub: hub, server: srv}
}

func (h *harness) token(userID string) string {
	h.t.Helper()
	tok, err := h.auth.Issue(&model.User{ID: userID, DisplayName: strings.ToUpper(userID[:1]) + userID[1:]}, time.Hour)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, userID string, body any) (*http.Response, []byte) {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+h.token(userID))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(h.t, err)
	return resp, buf.Bytes()
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), "body: %s", data)
	return v
}

type createdSpace struct {
	Space   model.Space   `json:"space"`
	Content model.Content `json:"content"`
}

// setup creates a document space owned by alice with bob as a member.
func (h *harness) setup() (string, string) {
	h.t.Helper()
	resp, body := h.do("POST", "/api/spaces", "alice", collab.SpaceInput{Title: "Notes", Kind: model.KindDocument})
	require.Equal(h.t, http.StatusCreated, resp.StatusCode, string(body))
	created := decode[createdSpace](h.t, body)

	resp, body = h.do("POST", "/api/spaces/"+created.Space.ID+"/members", "alice", map[string]any{"user_id": "bob"})
	require.Equal(h.t, http.StatusNoContent, resp.StatusCode, string(body))
	return created.Space.ID, created.Content.ID
}

func contentPath(sid, cid string) string {
	return "/api/spaces/" + sid + "/contents/" + cid
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/health", "/api/health"} {
		resp, body := h.do("GET", path, "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "healthy")
	}
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do("GET", "/api/spaces/s/contents", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest("GET", h.server.URL+"/api/spaces/s/contents", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, r.StatusCode)

	// A valid token records the caller's display data.
	h.do("GET", "/api/spaces/s/contents", "alice", nil)
	user, err := h.fx.DB.LookupUser(t.Context(), "alice")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Alice", user.DisplayName)
}

func TestContentLifecycle(t *testing.T) {
	h := newHarness(t)
	sid, cid := h.setup()
	path := contentPath(sid, cid)

	resp, body := h.do("GET", path, "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	view := decode[map[string]any](t, body)
	assert.Equal(t, float64(1), view["version"])
	perms := view["permissions"].(map[string]any)
	assert.Equal(t, true, perms["can_edit"])
	assert.Equal(t, "editor", perms["role"])

	resp, body = h.do("PUT", path, "alice", collab.WholeUpdate{Data: "ABCDEF", CreateSnapshot: true, Label: "seed"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, int64(2), decode[model.Content](t, body).Version)

	resp, body = h.do("GET", path+"/versions", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	versions := decode[[]model.ContentVersion](t, body)
	require.Len(t, versions, 1)
	assert.Equal(t, "seed", versions[0].Label)

	resp, body = h.do("GET", path+"/versions/"+versions[0].ID, "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decode[map[string]any](t, body)["content_data"], "Start writing here.")

	resp, body = h.do("POST", path+"/restore", "alice", map[string]string{"version_id": versions[0].ID})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, int64(3), decode[model.Content](t, body).Version)

	resp, _ = h.do("POST", path+"/restore", "alice", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body = h.do("POST", path+"/versions", "alice", map[string]string{"label": "checkpoint"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, int64(3), decode[model.ContentVersion](t, body).VersionNumber)

	resp, _ = h.do("DELETE", path, "bob", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = h.do("DELETE", path, "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = h.do("GET", path, "alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitOperations(t *testing.T) {
	h := newHarness(t)
	sid, _ := h.setup()

	resp, body := h.do("POST", "/api/spaces/"+sid+"/contents", "alice", map[string]any{
		"content_type": "text/plain",
		"content_data": "ABCDEF",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	path := contentPath(sid, decode[model.Content](t, body).ID)

	resp, body = h.do("POST", path+"/operations", "bob", collab.OperationInput{Type: model.OpDelete, Position: 0, Length: 2, Version: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = h.do("POST", path+"/operations", "alice", collab.OperationInput{Type: model.OpInsert, Position: 2, Text: "X", Version: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	result := decode[struct {
		Operation model.Operation `json:"operation"`
		Version   int64           `json:"version"`
	}](t, body)
	assert.Equal(t, int64(3), result.Version)
	assert.Equal(t, 0, result.Operation.Position)

	resp, body = h.do("GET", path, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "XCDEF", decode[model.Content](t, body).Data)

	resp, body = h.do("GET", path+"/operations?since=2", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.Operation](t, body), 1)

	t.Run("error mapping", func(t *testing.T) {
		cases := []struct {
			name   string
			user   string
			method string
			path   string
			body   any
			status int
		}{
			{"validation", "alice", "POST", path + "/operations", collab.OperationInput{Type: model.OpInsert, Position: -1, Text: "x", Version: 3}, http.StatusUnprocessableEntity},
			{"conflict", "alice", "POST", path + "/operations", collab.OperationInput{Type: model.OpInsert, Text: "x", Version: 99}, http.StatusConflict},
			{"not a member", "mallory", "GET", path, nil, http.StatusForbidden},
			{"missing content", "alice", "GET", contentPath(sid, "missing"), nil, http.StatusNotFound},
			{"bad since", "alice", "GET", path + "/operations?since=abc", nil, http.StatusUnprocessableEntity},
			{"catch-up across creation", "alice", "GET", path + "/operations?since=0", nil, http.StatusConflict},
			{"malformed body", "alice", "POST", path + "/operations", "not an object", http.StatusBadRequest},
		}
		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				resp, body := h.do(c.method, c.path, c.user, c.body)
				assert.Equal(t, c.status, resp.StatusCode, string(body))
				assert.Contains(t, string(body), `"error"`)
			})
		}
	})
}

func TestPermissionsAndComments(t *testing.T) {
	h := newHarness(t)
	sid, cid := h.setup()
	path := contentPath(sid, cid)

	resp, body := h.do("PUT", path+"/permissions", "alice", map[string]any{
		"permissions": []collab.Grant{{UserID: "bob", Role: model.RoleCommenter}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = h.do("PUT", path+"/permissions", "bob", map[string]any{
		"permissions": []collab.Grant{{UserID: "bob", Role: model.RoleEditor}},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = h.do("GET", path+"/permissions", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.Permission](t, body), 2)

	resp, _ = h.do("POST", path+"/operations", "bob", collab.OperationInput{Type: model.OpInsert, Text: "x", Version: 1})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = h.do("POST", path+"/comments", "bob", collab.CommentInput{Text: "typo here"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	comment := decode[model.Comment](t, body)

	resp, body = h.do("PUT", path+"/comments/"+comment.ID, "bob", map[string]string{"text": "typo on line 2"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "typo on line 2", decode[model.Comment](t, body).Text)

	resp, body = h.do("POST", path+"/comments/"+comment.ID+"/resolve", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.True(t, decode[model.Comment](t, body).Resolved)

	resp, body = h.do("GET", path+"/comments", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.Comment](t, body), 1)

	resp, _ = h.do("DELETE", path+"/comments/"+comment.ID, "bob", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCursors(t *testing.T) {
	h := newHarness(t)
	sid, cid := h.setup()
	path := contentPath(sid, cid)

	resp, body := h.do("POST", path+"/cursor", "bob", collab.CursorInput{Position: 3, Length: 2, Color: "#00f"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, model.OpSelection, decode[model.Operation](t, body).Type)

	resp, body = h.do("GET", path+"/cursors", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	active := decode[[]model.Operation](t, body)
	require.Len(t, active, 1)
	assert.Equal(t, "bob", active[0].ActorID)
	require.NotNil(t, active[0].Actor)
	assert.Equal(t, "Bob", active[0].Actor.DisplayName)

	resp, body = h.do("GET", path+"/cursors", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]model.Operation](t, body))

	resp, body = h.do("GET", path+"/cursors?window=60&include_self=true", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	active = decode[[]model.Operation](t, body)
	require.Len(t, active, 1)
	assert.Equal(t, "bob", active[0].ActorID)

	for _, query := range []string{"window=abc", "window=-5", "window=99999999999", "include_self=maybe"} {
		t.Run(query, func(t *testing.T) {
			resp, body := h.do("GET", path+"/cursors?"+query, "alice", nil)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))
		})
	}
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t)
	sid, cid := h.setup()
	ref := model.Ref{SpaceID: sid, ContentID: cid}
	wsURL := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws/spaces/" + sid + "/contents/" + cid

	t.Run("requires a token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("non-member is refused", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token="+h.token("mallory"), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("receives committed operations", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+h.token("bob"), nil)
		require.NoError(t, err)
		defer conn.Close()
		require.Eventually(t, func() bool { return h.hub.Subscribers(collab.Topic(ref)) == 1 },
			2*time.Second, 10*time.Millisecond)

		resp, body := h.do("POST", contentPath(sid, cid)+"/operations", "alice",
			collab.OperationInput{Type: model.OpInsert, Text: "hello ", Version: 1})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		event := decode[collab.Event](t, msg)
		assert.Equal(t, collab.EventOperationCommitted, event.Type)
		assert.Equal(t, int64(2), event.Version)
		assert.Equal(t, "alice", event.ActorID)
	})
}

func TestSubscribe_ClosedWhenContentDeleted(t *testing.T) {
	h := newHarness(t)
	sid, _ := h.setup()
	resp, body := h.do("POST", "/api/spaces/"+sid+"/contents", "alice", map[string]any{
		"content_type": "text/plain",
		"content_data": "short lived",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	cid := decode[model.Content](t, body).ID
	ref := model.Ref{SpaceID: sid, ContentID: cid}
	wsURL := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws/spaces/" + sid + "/contents/" + cid + "?token=" + h.token("bob")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.hub.Subscribers(collab.Topic(ref)) == 1 },
		2*time.Second, 10*time.Millisecond)

	resp, body = h.do("DELETE", contentPath(sid, cid), "alice", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, collab.EventContentDeleted, decode[collab.Event](t, msg).Type)
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, h.hub.Subscribers(collab.Topic(ref)))

	_, resp, err = websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
