package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cardcircle/config"
	"cardcircle/internal/auth"
	"cardcircle/internal/bootstrap"
	"cardcircle/internal/directory"
	"cardcircle/internal/domain/user"
	"cardcircle/internal/events"
	"cardcircle/internal/handler"
	"cardcircle/internal/repository/memory"
	"cardcircle/internal/storage"
	"cardcircle/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type groupView struct {
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	OwnerID  uuid.UUID   `json:"ownerId"`
	JoinCode string      `json:"joinCode"`
	Members  []uuid.UUID `json:"members"`
	Admins   []uuid.UUID `json:"admins"`
	IsOwner  bool        `json:"isOwner"`
	IsAdmin  bool        `json:"isAdmin"`
	Preview  string      `json:"lastMessageText"`
}

type messageView struct {
	ID       uuid.UUID `json:"id"`
	Kind     string    `json:"kind"`
	Text     string    `json:"text"`
	AuthorID uuid.UUID `json:"authorId"`
	Card     *struct {
		CardID string `json:"cardId"`
		Title  string `json:"title"`
	} `json:"card"`
}

type testEnv struct {
	t        *testing.T
	handler  http.Handler
	verifier *auth.JWTVerifier
	dir      *directory.MemoryDirectory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		AppMode:            TestMode,
		AppPort:            "0",
		CORSOrigins:        []string{"*"},
		PhotoMaxBytes:      1024,
		MessagePageDefault: 200,
		MessagePageMax:     500,
	}
	l := logger.NewNop()
	verifier, err := auth.NewJWTVerifier("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	dir := directory.NewMemoryDirectory()
	svc := bootstrap.NewServices(cfg, memory.NewStores(), dir, storage.DisabledStore{}, events.NewLocalBus(l), l)

	srv := New(cfg, l)
	srv.SetupRoutes(&Handlers{
		Groups:   handler.NewGroupHandler(svc.Membership, cfg.PhotoMaxBytes, l),
		Directs:  handler.NewDirectHandler(svc.Directs, l),
		Messages: handler.NewMessageHandler(svc.Messages, l),
		Shares:   handler.NewShareHandler(svc.Messages, l),
	}, Dependencies{Auth: verifier})

	return &testEnv{t: t, handler: srv.Handler(), verifier: verifier, dir: dir}
}

// user registers a directory entry and returns its id and a bearer token.
func (e *testEnv) user(name, email string) (uuid.UUID, string) {
	e.t.Helper()
	u := user.PublicUser{ID: uuid.New(), Name: name, Email: email}
	e.dir.Put(u)
	token, err := e.verifier.Sign(u.ID, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	if err != nil {
		e.t.Fatal(err)
	}
	return u.ID, token
}

func (e *testEnv) do(method, path, token string, body interface{}) (int, envelope) {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(req, token)
}

func (e *testEnv) send(req *http.Request, token string) (int, envelope) {
	e.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			e.t.Fatalf("%s %s: decode %q: %v", req.Method, req.URL.Path, w.Body.String(), err)
		}
	}
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

func TestPingHealthAndAuth(t *testing.T) {
	e := newTestEnv(t)
	if code, _ := e.do(http.MethodGet, "/ping", "", nil); code != http.StatusOK {
		t.Fatalf("ping = %d", code)
	}
	if code, _ := e.do(http.MethodGet, "/health", "", nil); code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}
	code, env := e.do(http.MethodGet, "/api/chat/groups", "", nil)
	if code != http.StatusUnauthorized || env.Code != "UNAUTHORIZED" {
		t.Fatalf("anonymous list = %d %s", code, env.Code)
	}
}

func TestGroupLifecycle(t *testing.T) {
	e := newTestEnv(t)
	ownerID, owner := e.user("Olga", "olga@example.com")
	bobID, bob := e.user("Bob", "bob@example.com")
	carolID, carol := e.user("Carol", "carol@example.com")

	code, env := e.do(http.MethodPost, "/api/chat/groups", owner, map[string]string{"name": "  Founders  "})
	if code != http.StatusCreated {
		t.Fatalf("create = %d %s", code, env.Error)
	}
	g := decode[groupView](t, env)
	if g.Name != "Founders" || !g.IsOwner || !g.IsAdmin || len(g.JoinCode) != 6 || g.OwnerID != ownerID {
		t.Fatalf("created group = %+v", g)
	}
	base := "/api/chat/groups/" + g.ID.String()

	// joining is case insensitive and the code is hidden from plain members
	code, env = e.do(http.MethodPost, "/api/chat/groups/join", bob, map[string]string{"code": strings.ToLower(g.JoinCode)})
	if code != http.StatusOK {
		t.Fatalf("join = %d %s", code, env.Error)
	}
	joined := decode[groupView](t, env)
	if joined.IsOwner || joined.IsAdmin || joined.JoinCode != "" || len(joined.Members) != 2 {
		t.Fatalf("joined view = %+v", joined)
	}

	code, env = e.do(http.MethodPost, base+"/members", bob, map[string]string{"identifier": "carol@example.com"})
	if code != http.StatusForbidden || env.Code != "FORBIDDEN" {
		t.Fatalf("member adding = %d %s", code, env.Code)
	}

	code, env = e.do(http.MethodPost, base+"/members", owner, map[string]string{"identifier": "CAROL@example.com"})
	if code != http.StatusOK {
		t.Fatalf("owner adding = %d %s", code, env.Error)
	}
	type addResult struct {
		User struct {
			ID   uuid.UUID `json:"id"`
			Role string    `json:"role"`
		} `json:"user"`
		Added bool `json:"added"`
	}
	added := decode[addResult](t, env)
	if !added.Added || added.User.ID != carolID || added.User.Role != "member" {
		t.Fatalf("add result = %+v", added)
	}

	code, env = e.do(http.MethodPost, base+"/admins", bob, map[string]string{"userId": carolID.String(), "action": "add"})
	if code != http.StatusForbidden {
		t.Fatalf("non-owner promoting = %d", code)
	}
	code, env = e.do(http.MethodPost, base+"/admins", owner, map[string]string{"userId": bobID.String(), "action": "add"})
	if code != http.StatusOK || !containsID(decode[groupView](t, env).Admins, bobID) {
		t.Fatalf("promote = %d %s", code, env.Error)
	}
	code, env = e.do(http.MethodPost, base+"/members", owner, map[string]string{"identifier": "bob@example.com"})
	if readded := decode[addResult](t, env); code != http.StatusOK || readded.Added || readded.User.Role != "admin" {
		t.Fatalf("re-adding an admin = %d %+v", code, readded)
	}

	code, env = e.do(http.MethodPost, base+"/members/remove", bob, map[string]string{"userId": ownerID.String()})
	if code != http.StatusBadRequest {
		t.Fatalf("admin removing owner = %d %s", code, env.Code)
	}
	code, env = e.do(http.MethodPost, base+"/members/remove", carol, map[string]string{"userId": ownerID.String()})
	if code != http.StatusForbidden {
		t.Fatalf("member removing owner = %d %s", code, env.Code)
	}
	code, env = e.do(http.MethodPost, base+"/members/remove", bob, map[string]string{"userId": carolID.String()})
	if code != http.StatusOK || containsID(decode[groupView](t, env).Members, carolID) {
		t.Fatalf("admin removing member = %d %s", code, env.Error)
	}

	if code, _ = e.do(http.MethodPost, base+"/leave", owner, nil); code != http.StatusBadRequest {
		t.Fatalf("owner leaving = %d", code)
	}
	if code, _ = e.do(http.MethodGet, base, carol, nil); code != http.StatusForbidden {
		t.Fatalf("removed member reading group = %d", code)
	}

	code, env = e.do(http.MethodGet, base+"/members", bob, nil)
	if code != http.StatusOK {
		t.Fatalf("members = %d", code)
	}
	members := decode[struct {
		Members []struct {
			ID   uuid.UUID `json:"id"`
			Role string    `json:"role"`
		} `json:"members"`
		IsAdmin bool `json:"isAdmin"`
	}](t, env)
	if len(members.Members) != 2 || !members.IsAdmin {
		t.Fatalf("members view = %+v", members)
	}

	desc := "weekly sync"
	code, env = e.do(http.MethodPatch, base+"/settings", bob, map[string]*string{"description": &desc})
	if code != http.StatusOK {
		t.Fatalf("settings = %d %s", code, env.Error)
	}

	code, env = e.do(http.MethodPost, base+"/join-code", owner, nil)
	if code != http.StatusOK || decode[groupView](t, env).JoinCode == g.JoinCode {
		t.Fatalf("regenerate = %d", code)
	}
	if code, _ = e.do(http.MethodPost, "/api/chat/groups/join", carol, map[string]string{"code": g.JoinCode}); code != http.StatusNotFound {
		t.Fatalf("old code still works: %d", code)
	}

	if code, _ = e.do(http.MethodPost, base+"/leave", bob, nil); code != http.StatusOK {
		t.Fatalf("bob leaving = %d", code)
	}
	code, env = e.do(http.MethodGet, "/api/chat/groups", bob, nil)
	if code != http.StatusOK || len(decode[struct {
		Groups []groupView `json:"groups"`
	}](t, env).Groups) != 0 {
		t.Fatalf("bob still lists the group")
	}
}

func TestGroupMessagesAndShare(t *testing.T) {
	e := newTestEnv(t)
	_, owner := e.user("Olga", "olga@example.com")
	_, stranger := e.user("Sam", "sam@example.com")

	_, env := e.do(http.MethodPost, "/api/chat/groups", owner, map[string]string{"name": "Team"})
	g := decode[groupView](t, env)
	base := "/api/chat/groups/" + g.ID.String()

	code, env := e.do(http.MethodPost, base+"/messages", owner, map[string]string{"kind": "text", "text": "  hello  "})
	if code != http.StatusCreated {
		t.Fatalf("send = %d %s", code, env.Error)
	}
	first := decode[messageView](t, env)
	if first.Text != "hello" || first.Kind != "text" {
		t.Fatalf("sent = %+v", first)
	}

	card := map[string]interface{}{"cardId": "c-1", "ownerId": "o-1", "title": "Ana Lima"}
	code, env = e.do(http.MethodPost, "/api/shares/group", owner, map[string]interface{}{"groupId": g.ID, "card": card})
	if code != http.StatusCreated || decode[messageView](t, env).Card == nil {
		t.Fatalf("share = %d %s", code, env.Error)
	}
	if code, _ = e.do(http.MethodPost, "/api/shares/group", stranger, map[string]interface{}{"groupId": g.ID, "card": card}); code != http.StatusForbidden {
		t.Fatalf("stranger share = %d", code)
	}
	if code, _ = e.do(http.MethodPost, base+"/messages", owner, map[string]string{"kind": "text", "text": "   "}); code != http.StatusBadRequest {
		t.Fatalf("blank text = %d", code)
	}
	if code, _ = e.do(http.MethodGet, base+"/messages", stranger, nil); code != http.StatusForbidden {
		t.Fatalf("stranger read = %d", code)
	}

	code, env = e.do(http.MethodGet, base+"/messages", owner, nil)
	list := decode[struct {
		Messages []messageView `json:"messages"`
	}](t, env)
	if code != http.StatusOK || len(list.Messages) != 2 {
		t.Fatalf("list = %d, %d messages", code, len(list.Messages))
	}

	code, env = e.do(http.MethodGet, base+"/messages?sinceId="+list.Messages[0].ID.String(), owner, nil)
	rest := decode[struct {
		Messages []messageView `json:"messages"`
	}](t, env)
	if code != http.StatusOK || len(rest.Messages) != 1 || rest.Messages[0].ID != list.Messages[1].ID {
		t.Fatalf("cursor page = %d %+v", code, rest.Messages)
	}

	for _, q := range []string{"?limit=x", "?limit=-1", "?since=yesterday", "?sinceId=nope"} {
		if code, _ = e.do(http.MethodGet, base+"/messages"+q, owner, nil); code != http.StatusBadRequest {
			t.Fatalf("query %s = %d", q, code)
		}
	}
	if code, _ = e.do(http.MethodGet, base+"/messages?sinceId="+uuid.NewString(), owner, nil); code != http.StatusNotFound {
		t.Fatalf("unknown cursor = %d", code)
	}

	_, env = e.do(http.MethodGet, base, owner, nil)
	if decode[groupView](t, env).Preview == "" {
		t.Fatal("group preview not updated")
	}
}

func TestDirectConversations(t *testing.T) {
	e := newTestEnv(t)
	aliceID, alice := e.user("Alice", "alice@example.com")
	bobID, bob := e.user("Bob", "bob@example.com")
	_, eve := e.user("Eve", "eve@example.com")

	code, env := e.do(http.MethodPost, "/api/dm/open", alice, map[string]string{"userId": bobID.String()})
	if code != http.StatusCreated {
		t.Fatalf("open = %d %s", code, env.Error)
	}
	type openView struct {
		Conversation struct {
			ID          uuid.UUID `json:"id"`
			OtherUserID uuid.UUID `json:"otherUserId"`
		} `json:"conversation"`
		Created bool `json:"created"`
	}
	first := decode[openView](t, env)

	code, env = e.do(http.MethodPost, "/api/dm/open", bob, map[string]string{"userId": aliceID.String()})
	second := decode[openView](t, env)
	if code != http.StatusOK || second.Created || second.Conversation.ID != first.Conversation.ID || second.Conversation.OtherUserID != aliceID {
		t.Fatalf("reopen = %d %+v", code, second)
	}

	if code, _ = e.do(http.MethodPost, "/api/dm/open", alice, map[string]string{"userId": aliceID.String()}); code != http.StatusBadRequest {
		t.Fatalf("self dm = %d", code)
	}
	if code, _ = e.do(http.MethodPost, "/api/dm/open", alice, map[string]string{"userId": uuid.NewString()}); code != http.StatusNotFound {
		t.Fatalf("unknown user dm = %d", code)
	}

	path := "/api/dm/" + first.Conversation.ID.String() + "/messages"
	card := map[string]interface{}{"cardId": "c-9", "ownerId": aliceID.String()}
	code, env = e.do(http.MethodPost, path, alice, map[string]interface{}{"kind": "card", "card": card})
	if code != http.StatusCreated {
		t.Fatalf("dm card = %d %s", code, env.Error)
	}
	if m := decode[messageView](t, env); m.Card == nil || m.Card.Title != "Card" {
		t.Fatalf("default card title missing: %+v", m)
	}
	if code, _ = e.do(http.MethodPost, path, eve, map[string]string{"kind": "text", "text": "hi"}); code != http.StatusForbidden {
		t.Fatalf("outsider send = %d", code)
	}

	code, env = e.do(http.MethodGet, "/api/dm", bob, nil)
	convs := decode[struct {
		Conversations []struct {
			ID              uuid.UUID `json:"id"`
			LastMessageText string    `json:"lastMessageText"`
		} `json:"conversations"`
	}](t, env)
	if code != http.StatusOK || len(convs.Conversations) != 1 || convs.Conversations[0].LastMessageText != "Shared a card: Card" {
		t.Fatalf("dm list = %d %+v", code, convs)
	}
}

func TestGroupPhotoUpload(t *testing.T) {
	e := newTestEnv(t)
	_, owner := e.user("Olga", "olga@example.com")
	_, env := e.do(http.MethodPost, "/api/chat/groups", owner, map[string]string{"name": "Team"})
	g := decode[groupView](t, env)
	path := "/api/chat/groups/" + g.ID.String() + "/photo"

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	upload := func(data []byte) (int, envelope) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("photo", "photo.png")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(data)
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, path, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return e.send(req, owner)
	}

	if code, env := upload(append(png, make([]byte, 2048)...)); code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized = %d %s", code, env.Code)
	}
	if code, _ := upload([]byte("plain text, not an image")); code != http.StatusBadRequest {
		t.Fatalf("non image = %d", code)
	}
	// no object store configured in this environment
	if code, env := upload(png); code != http.StatusServiceUnavailable || env.Code != "SERVICE_UNAVAILABLE" {
		t.Fatalf("disabled store = %d %s", code, env.Code)
	}
}

func TestBadPathIDAndCORS(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.user("Olga", "olga@example.com")
	if code, env := e.do(http.MethodGet, "/api/chat/groups/not-a-uuid", token, nil); code != http.StatusBadRequest || env.Code != "INVALID_REQUEST" {
		t.Fatalf("bad id = %d %s", code, env.Code)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/groups", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("preflight missing allow origin: %v", w.Header())
	}
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
