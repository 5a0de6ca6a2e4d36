package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chatroom/domain"
	"chatroom/moderation"
	"chatroom/repositories"
	"chatroom/search"
	"chatroom/services"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	moderator, err := moderation.NewModerator([]string{"idiota"}, '*')
	require.NoError(t, err)

	service := services.NewChatService(
		repositories.NewParticipantRepository(db, log),
		repositories.NewMessageRepository(db, log),
		search.NewMessageIndex(writer, log),
		&moderator,
		domain.SystemClock{},
		20,
		log,
	)
	return NewServer(service, log)
}

func do(t *testing.T, s *Server, method, path, user string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(HeaderIdentity, user)
	}
	resp, err := s.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func register(t *testing.T, s *Server, name string) {
	t.Helper()
	resp := do(t, s, http.MethodPost, "/participants", "", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func post(t *testing.T, s *Server, from string, body map[string]string) messageResponse {
	t.Helper()
	resp := do(t, s, http.MethodPost, "/messages", from, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeJSON[messageResponse](t, resp)
}

func Test_Register_Status_Codes(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	resp := do(t, s, http.MethodPost, "/participants", "", map[string]string{"name": "Alice"})
	req.Equal(http.StatusCreated, resp.StatusCode)
	created := decodeJSON[participantResponse](t, resp)
	req.Equal("Alice", created.Name)
	req.NotEmpty(created.LastSeen)

	resp = do(t, s, http.MethodPost, "/participants", "", map[string]string{"name": "Alice"})
	req.Equal(http.StatusConflict, resp.StatusCode)

	resp = do(t, s, http.MethodPost, "/participants", "", map[string]string{"name": "Al"})
	req.Equal(http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, s, http.MethodPost, "/participants", "", map[string]string{"name": domain.Broadcast})
	req.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
}

func Test_Broadcast_And_Join_Visible_To_Everyone(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	register(t, s, "Alice")
	post(t, s, "Alice", map[string]string{"to": domain.Broadcast, "text": "hi", "type": "message"})

	resp := do(t, s, http.MethodGet, "/messages", "Bob", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	msgs := decodeJSON[[]messageResponse](t, resp)
	req.Len(msgs, 2)
	req.Equal("status", msgs[0].Type)
	req.Equal(domain.JoinedText, msgs[0].Text)
	req.Equal("Alice", msgs[0].From)
	req.Equal("hi", msgs[1].Text)
}

func Test_Private_Message_Is_Filtered(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	register(t, s, "Alice")
	register(t, s, "Bobby")
	post(t, s, "Alice", map[string]string{"to": "Bobby", "text": "segredo", "type": "private_message"})

	for viewer, expected := range map[string]bool{"Alice": true, "Bobby": true, "Carol": false} {
		resp := do(t, s, http.MethodGet, "/messages", viewer, nil)
		req.Equal(http.StatusOK, resp.StatusCode)
		msgs := decodeJSON[[]messageResponse](t, resp)
		found := false
		for _, m := range msgs {
			if m.Text == "segredo" {
				found = true
			}
		}
		req.Equal(expected, found, "viewer %s", viewer)
	}
}

func Test_Post_Requires_Live_Participant(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	resp := do(t, s, http.MethodPost, "/messages", "Ghost",
		map[string]string{"to": domain.Broadcast, "text": "boo", "type": "message"})
	req.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
}

func Test_Post_Rejects_Status_Type(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	register(t, s, "Alice")
	resp := do(t, s, http.MethodPost, "/messages", "Alice",
		map[string]string{"to": domain.Broadcast, "text": "fake join", "type": "status"})
	req.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
}

func Test_Posted_Text_Is_Censored(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	register(t, s, "Alice")
	msg := post(t, s, "Alice", map[string]string{"to": domain.Broadcast, "text": "seu idiota", "type": "message"})
	req.Equal("seu ******", msg.Text)
}

func Test_Get_Messages_Limit(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	register(t, s, "Alice")
	for i := 0; i < 3; i++ {
		post(t, s, "Alice", map[string]string{
			"to": domain.Broadcast, "text": fmt.Sprintf("msg %d", i), "type": "message",
		})
	}

	resp := do(t, s, http.MethodGet, "/messages?limit=2", "Bob", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	msgs := decodeJSON[[]messageResponse](t, resp)
	req.Len(msgs, 2)
	req.Equal("msg 1", msgs[0].Text)
	req.Equal("msg 2", msgs[1].Text)

	for _, bad := range []string{"0", "-1", "abc"} {
		resp := do(t, s, http.MethodGet, "/messages?limit="+bad, "Bob", nil)
		req.Equal(http.StatusUnprocessableEntity, resp.StatusCode, "limit %q", bad)
	}
}

func Test_Heartbeat(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	register(t, s, "Alice")

	resp := do(t, s, http.MethodPost, "/status", "Alice", nil)
	req.Equal(http.StatusOK, resp.StatusCode)

	resp = do(t, s, http.MethodPost, "/status", "Ghost", nil)
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func Test_Edit_Authorization(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	register(t, s, "Alice")
	register(t, s, "Bobby")
	msg := post(t, s, "Alice", map[string]string{"to": domain.Broadcast, "text": "tpyo", "type": "message"})

	body := map[string]string{"to": domain.Broadcast, "text": "typo", "type": "message"}

	resp := do(t, s, http.MethodPut, "/messages/"+msg.ID, "Bobby", body)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, s, http.MethodPut, "/messages/"+uuid.NewString(), "Alice", body)
	req.Equal(http.StatusNotFound, resp.StatusCode)

	resp = do(t, s, http.MethodPut, "/messages/not-a-uuid", "Alice", body)
	req.Equal(http.StatusNotFound, resp.StatusCode)

	resp = do(t, s, http.MethodPut, "/messages/"+msg.ID, "Alice", body)
	req.Equal(http.StatusCreated, resp.StatusCode)
	edited := decodeJSON[messageResponse](t, resp)
	req.Equal("typo", edited.Text)
	req.Equal(msg.ID, edited.ID)
}

func Test_Delete_Authorization(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	register(t, s, "Alice")
	register(t, s, "Bobby")
	msg := post(t, s, "Alice", map[string]string{"to": domain.Broadcast, "text": "oops", "type": "message"})

	resp := do(t, s, http.MethodDelete, "/messages/"+msg.ID, "Bobby", nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, s, http.MethodDelete, "/messages/"+msg.ID, "Alice", nil)
	req.Equal(http.StatusOK, resp.StatusCode)

	// The removal is permanent.
	resp = do(t, s, http.MethodDelete, "/messages/"+msg.ID, "Alice", nil)
	req.Equal(http.StatusNotFound, resp.StatusCode)

	resp = do(t, s, http.MethodGet, "/messages", "Alice", nil)
	msgs := decodeJSON[[]messageResponse](t, resp)
	for _, m := range msgs {
		req.NotEqual("oops", m.Text)
	}
}

func Test_Search(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	register(t, s, "Alice")
	post(t, s, "Alice", map[string]string{"to": domain.Broadcast, "text": "the invoice is overdue", "type": "message"})
	post(t, s, "Alice", map[string]string{"to": domain.Broadcast, "text": "lovely weather", "type": "message"})

	resp := do(t, s, http.MethodGet, "/messages/search?q=invoice", "Alice", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	msgs := decodeJSON[[]messageResponse](t, resp)
	req.Len(msgs, 1)
	req.Equal("the invoice is overdue", msgs[0].Text)

	resp = do(t, s, http.MethodGet, "/messages/search?q=", "Alice", nil)
	req.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
}

func Test_Healthz(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	resp := do(t, s, http.MethodGet, "/healthz", "", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	body := decodeJSON[map[string]any](t, resp)
	req.Equal("ok", body["status"])
}
