package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"playmatch/matchmaster/docs"
	"playmatch/matchmaster/internal/config"
	"playmatch/matchmaster/internal/modules"
	"playmatch/matchmaster/internal/spawn"
	"playmatch/matchmaster/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/swaggo/swag"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:            "test-secret",
		HTTPAddr:             "127.0.0.1:0",
		PublicURL:            "http://127.0.0.1",
		SpawnMaxConcurrent:   2,
		SpawnRegisterTimeout: time.Minute,
		RoomAccessTTL:        time.Minute,
		LobbyEventBuffer:     32,
		LobbyLoopQueue:       32,
	}
}

func startServer(t *testing.T) *Services {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	config.AppConfig = cfg

	ctx, cancel := context.WithCancel(context.Background())
	svc, err := New(cfg).Start(ctx)
	if err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		svc.Close()
		cancel()
	})
	return svc
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type client struct {
	t      *testing.T
	base   string
	token  string
	peerID int64
}

func (c *client) do(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		c.t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.peerID != 0 {
		req.Header.Set("X-Peer-ID", strconv.FormatInt(c.peerID, 10))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp.StatusCode, out.Bytes()
}

func (c *client) mustDo(method, path string, body any, wantStatus int, out any) {
	c.t.Helper()
	status, raw := c.do(method, path, body)
	if status != wantStatus {
		c.t.Fatalf("%s %s = %d %s, want %d", method, path, status, raw, wantStatus)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			c.t.Fatalf("decode %s: %v", raw, err)
		}
	}
}

// connect opens the event stream and returns once the peer id is known.
func (c *client) connect(ctx context.Context) {
	c.t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/events", nil)
	if err != nil {
		c.t.Fatalf("request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("events: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("events status = %d", resp.StatusCode)
	}
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var connected struct {
			PeerID int64 `json:"peer_id"`
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &connected); err != nil {
			c.t.Fatalf("decode connected event: %v", err)
		}
		c.peerID = connected.PeerID
		go func() {
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)
		}()
		return
	}
	c.t.Fatalf("event stream closed before the connected event")
}

func TestStartSkipsAccountsWithoutDatabase(t *testing.T) {
	svc := startServer(t)
	if svc.DB != nil || svc.Recorder != nil {
		t.Fatalf("accounts should be disabled without DATABASE_URL")
	}
	if svc.Lobbies == nil || svc.Router == nil || svc.Spawner == nil || svc.Rooms == nil {
		t.Fatalf("services = %+v", svc)
	}
}

func TestStartFailsWithoutSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = ""
	s := New(cfg)
	if _, err := s.Start(context.Background()); err == nil {
		t.Fatalf("Start without JWT_SECRET should fail")
	}
	if s.Registry().Initialized(ModuleLobbies) {
		t.Fatalf("lobbies initialized without rooms")
	}
}

type extraModule struct {
	modules.Base
	sawLobbies bool
}

func (m *extraModule) Type() string           { return "extra" }
func (m *extraModule) Dependencies() []string { return []string{ModuleLobbies} }

func (m *extraModule) Initialize(h *modules.Host) error {
	m.sawLobbies = services(h).Lobbies != nil
	return nil
}

func TestRegistryAcceptsExtraModules(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(testConfig())
	extra := &extraModule{}
	s.Registry().MustRegister(extra)

	svc, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Close()
	if !extra.sawLobbies {
		t.Fatalf("extra module initialized before lobbies")
	}
}

func TestMatchFlowOverHTTP(t *testing.T) {
	svc := startServer(t)
	ts := httptest.NewServer(svc.Router)
	defer ts.Close()

	token, err := jwt.GenerateToken(1)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	alice := &client{t: t, base: ts.URL, token: token}

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	alice.connect(streamCtx)

	var created struct {
		LobbyID    int64  `json:"lobby_id"`
		GameMaster string `json:"game_master"`
	}
	alice.mustDo(http.MethodPost, "/api/v1/lobbies", gin.H{"type": "deathmatch", "properties": gin.H{"name": "Test"}}, http.StatusCreated, &created)
	if created.GameMaster != "user1" {
		t.Fatalf("game master = %q", created.GameMaster)
	}

	status, _ := alice.do(http.MethodPost, "/api/v1/lobby/access", nil)
	if status != http.StatusConflict {
		t.Fatalf("access before the game = %d, want 409", status)
	}

	alice.mustDo(http.MethodPost, "/api/v1/lobby/start", nil, http.StatusOK, nil)

	var task *spawn.Task
	eventually(t, "a spawned task waiting for its process", func() bool {
		tasks := svc.Spawner.Tasks()
		if len(tasks) != 1 {
			return false
		}
		task = tasks[0]
		return task.Status() == spawn.StatusWaitingForProcess
	})

	gameServer := &client{t: t, base: ts.URL}
	gameServer.mustDo(http.MethodPost, "/api/v1/gameservers/tasks/"+task.ID+"/register", gin.H{"code": "wrong"}, http.StatusForbidden, nil)
	gameServer.mustDo(http.MethodPost, "/api/v1/gameservers/tasks/"+task.ID+"/register", gin.H{"code": task.Code}, http.StatusOK, nil)

	var room struct {
		ID string `json:"id"`
	}
	gameServer.mustDo(http.MethodPost, "/api/v1/gameservers/rooms", gin.H{
		"task_id": task.ID,
		"code":    task.Code,
		"ip":      "10.0.0.7",
		"port":    7777,
	}, http.StatusCreated, &room)

	lobbyState := func() string {
		var data struct {
			State string `json:"state"`
		}
		alice.mustDo(http.MethodGet, "/api/v1/lobby", nil, http.StatusOK, &data)
		return data.State
	}
	eventually(t, "the game to be in progress", func() bool { return lobbyState() == "game_in_progress" })

	var access struct {
		Token    string `json:"token"`
		RoomID   string `json:"room_id"`
		RoomPort int    `json:"room_port"`
	}
	alice.mustDo(http.MethodPost, "/api/v1/lobby/access", nil, http.StatusOK, &access)
	if access.RoomID != room.ID || access.RoomPort != 7777 {
		t.Fatalf("access = %+v", access)
	}

	var claims struct {
		Username string `json:"username"`
		LobbyID  int64  `json:"lobby_id"`
	}
	gameServer.mustDo(http.MethodPost, "/api/v1/gameservers/rooms/"+room.ID+"/access/validate", gin.H{"token": access.Token}, http.StatusOK, &claims)
	if claims.Username != "user1" || claims.LobbyID != created.LobbyID {
		t.Fatalf("claims = %+v", claims)
	}

	gameServer.mustDo(http.MethodPost, "/api/v1/gameservers/rooms/"+room.ID+"/destroy", gin.H{"code": task.Code}, http.StatusOK, nil)
	eventually(t, "the lobby to return to preparations", func() bool { return lobbyState() == "preparations" })
	eventually(t, "the task to be released", func() bool { return len(svc.Spawner.Tasks()) == 0 })

	stopStream()
	eventually(t, "the lobby to close with its last member", func() bool {
		status, _ := alice.do(http.MethodGet, "/api/v1/lobbies/"+strconv.FormatInt(created.LobbyID, 10), nil)
		return status == http.StatusNotFound
	})
}

func TestLobbyRequestsNeedAConnectedPeer(t *testing.T) {
	svc := startServer(t)
	ts := httptest.NewServer(svc.Router)
	defer ts.Close()

	token, err := jwt.GenerateToken(2)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	bob := &client{t: t, base: ts.URL, token: token}

	bob.mustDo(http.MethodPost, "/api/v1/lobbies", gin.H{"type": "duel"}, http.StatusBadRequest, nil)
	bob.peerID = 99
	bob.mustDo(http.MethodPost, "/api/v1/lobbies", gin.H{"type": "duel"}, http.StatusNotFound, nil)

	var types []string
	bob.mustDo(http.MethodGet, "/api/v1/lobbies/types", nil, http.StatusOK, &types)
	if len(types) != 4 {
		t.Fatalf("types = %v", types)
	}

	anonymous := &client{t: t, base: ts.URL}
	anonymous.mustDo(http.MethodGet, "/api/v1/lobbies", nil, http.StatusOK, nil)
	anonymous.mustDo(http.MethodPost, "/api/v1/lobbies", gin.H{"type": "duel"}, http.StatusUnauthorized, nil)
}

func TestEveryRouteIsDocumented(t *testing.T) {
	svc := startServer(t)
	raw, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		t.Fatalf("ReadDoc: %v", err)
	}
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}

	param := regexp.MustCompile(`:(\w+)`)
	for _, route := range svc.Router.Routes() {
		if !strings.HasPrefix(route.Path, "/api/v1/") {
			continue
		}
		path := param.ReplaceAllString(strings.TrimPrefix(route.Path, "/api/v1"), "{$1}")
		if _, ok := doc.Paths[path][strings.ToLower(route.Method)]; !ok {
			t.Fatalf("%s %s is not documented", route.Method, path)
		}
	}
}
