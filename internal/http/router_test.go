package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-movies-backend/internal/auth"
	"github.com/tbourn/go-movies-backend/internal/config"
	"github.com/tbourn/go-movies-backend/internal/domain"
	"github.com/tbourn/go-movies-backend/internal/http/middleware"
	"github.com/tbourn/go-movies-backend/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testUsers(t *testing.T) *auth.UserStore {
	t.Helper()
	us, err := auth.ParseUsers(config.DefaultAuthUsers, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("parse users: %v", err)
	}
	return us
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      100,
		IdempotencyTTL: time.Hour,
		Auth:           config.AuthConfig{Realm: "movies"},
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, testUsers(t), cfg)
	return r, db
}

func call(r http.Handler, method, path, user, pass string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	// /health works
	w := call(r, http.MethodGet, "/health", "", "", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = call(r, http.MethodGet, "/metrics", "", "", nil, nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = call(r, http.MethodGet, "/nope", "", "", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("NoRoute expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (route exists for GET only)
	w = call(r, http.MethodPost, "/health", "", "", nil, nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("NoMethod expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSAllowlist_EchoesOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://ok.example"}}
	r, _ := newTestRouter(t, cfg)

	w := call(r, http.MethodGet, "/health", "", "", nil, map[string]string{"Origin": "https://ok.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://ok.example" {
		t.Fatalf("allowlist origin not echoed, got %q", got)
	}

	w = call(r, http.MethodGet, "/health", "", "", nil, map[string]string{"Origin": "https://evil.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected ACAO for disallowed origin: %q", got)
	}
}

func TestHealth_StoreUnreachable(t *testing.T) {
	r, db := newTestRouter(t, testConfig())
	sqlDB, _ := db.DB()
	_ = sqlDB.Close()

	w := call(r, http.MethodGet, "/health", "", "", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503 after close, got %d", w.Code)
	}
}

func TestAPI_RequiresCredentials(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := call(r, http.MethodGet, "/api/v1/movies", "", "", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != `Basic realm="movies"` {
		t.Fatalf("challenge = %q", got)
	}

	w = call(r, http.MethodGet, "/api/v1/movies", "admin", "wrong", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: want 401, got %d", w.Code)
	}
}

func TestAPI_RoleMatrix(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	type cred struct{ user, pass string }
	var (
		user  = cred{"user", "12345"}
		admin = cred{"admin", "daryna"}
		root  = cred{"root", "root"}
	)

	cases := []struct {
		name   string
		method string
		path   string
		who    cred
		body   any
		want   int
	}{
		{"user hello", http.MethodGet, "/api/v1/movies/hello/user", user, nil, 200},
		{"admin on user hello", http.MethodGet, "/api/v1/movies/hello/user", admin, nil, 403},
		{"admin hello", http.MethodPost, "/api/v1/movies/hello/admin", admin, nil, 200},
		{"root hello", http.MethodGet, "/api/v1/movies/hello/root", root, nil, 200},
		{"user list", http.MethodGet, "/api/v1/movies", user, nil, 403},
		{"admin list", http.MethodGet, "/api/v1/movies", admin, nil, 200},
		{"root list", http.MethodGet, "/api/v1/movies", root, nil, 200},
		{"root create", http.MethodPost, "/api/v1/movies/dto", root, map[string]string{"title": "X"}, 403},
		{"admin create", http.MethodPost, "/api/v1/movies/dto", admin, map[string]string{"title": "X"}, 200},
		{"admin delete", http.MethodDelete, "/api/v1/movies/abc", admin, nil, 403},
		{"root delete", http.MethodDelete, "/api/v1/movies/abc", root, nil, 204},
		{"admin replace", http.MethodPut, "/api/v1/movies/abc", admin, map[string]string{"title": "Y"}, 403},
		{"root replace", http.MethodPut, "/api/v1/movies/abc", root, map[string]string{"title": "Y"}, 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := call(r, tc.method, tc.path, tc.who.user, tc.who.pass, tc.body, nil)
			if w.Code != tc.want {
				t.Fatalf("%s %s as %s = %d, want %d (body=%s)", tc.method, tc.path, tc.who.user, w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestAPI_CreateThenReadBack(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := call(r, http.MethodPost, "/api/v1/movies/dto", "admin", "daryna",
		map[string]string{"title": "Inception", "description": "dreams", "genre": "sci-fi"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("create = %d body=%s", w.Code, w.Body.String())
	}
	var created domain.Movie
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.ID == "" {
		t.Fatalf("decode created: %v %+v", err, created)
	}

	w = call(r, http.MethodGet, "/api/v1/movies/"+created.ID, "admin", "daryna", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}

	w = call(r, http.MethodPost, "/api/v1/movies/dto", "admin", "daryna",
		map[string]string{"title": "Inception"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate create = %d", w.Code)
	}

	w = call(r, http.MethodGet, "/api/v1/movies/does-not-exist", "root", "root", nil, nil)
	if w.Code != http.StatusNotFound || w.Body.Len() != 0 {
		t.Fatalf("missing get = %d body=%q", w.Code, w.Body.String())
	}
}

func TestAPI_IdempotentCreateReplays(t *testing.T) {
	r, db := newTestRouter(t, testConfig())
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "k-1"}
	body := map[string]string{"title": "Heat"}

	w1 := call(r, http.MethodPost, "/api/v1/movies/dto", "admin", "daryna", body, hdr)
	if w1.Code != http.StatusOK {
		t.Fatalf("first = %d", w1.Code)
	}
	w2 := call(r, http.MethodPost, "/api/v1/movies/dto", "admin", "daryna", body, hdr)
	if w2.Code != http.StatusOK {
		t.Fatalf("replay = %d body=%s", w2.Code, w2.Body.String())
	}
	if w2.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay header missing")
	}

	var a, b domain.Movie
	_ = json.Unmarshal(w1.Body.Bytes(), &a)
	_ = json.Unmarshal(w2.Body.Bytes(), &b)
	if a.ID == "" || a.ID != b.ID {
		t.Fatalf("replay returned a different record: %q vs %q", a.ID, b.ID)
	}
	n, _ := repo.CountMovies(context.Background(), db)
	if n != 1 {
		t.Fatalf("want 1 stored movie, got %d", n)
	}
}

func TestIdempotencyStore_RecordAndLookup(t *testing.T) {
	db := newTestDB(t)
	s := idempotencyStore{db: db, ttl: time.Minute}
	ctx := context.Background()

	if _, ok, err := s.Lookup(ctx, "u", "POST /x", "k", time.Now()); err != nil || ok {
		t.Fatalf("empty lookup: ok=%v err=%v", ok, err)
	}
	if err := s.Record(ctx, "u", "POST /x", "k", "m-1", 201); err != nil {
		t.Fatalf("record: %v", err)
	}
	// second record of the same key is swallowed
	if err := s.Record(ctx, "u", "POST /x", "k", "m-2", 201); err != nil {
		t.Fatalf("duplicate record: %v", err)
	}
	id, ok, err := s.Lookup(ctx, "u", "POST /x", "k", time.Now())
	if err != nil || !ok || id != "m-1" {
		t.Fatalf("lookup = %q %v %v", id, ok, err)
	}
	if _, ok, _ := s.Lookup(ctx, "u", "POST /x", "k", time.Now().Add(2*time.Minute)); ok {
		t.Fatalf("expired record should not be found")
	}
}

func TestMovieRepoShim_Proxies(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	var s movieRepoShim

	m := &domain.Movie{Title: "Alien"}
	if err := s.CreateMovie(ctx, db, m); err != nil || m.ID == "" {
		t.Fatalf("create: %v id=%q", err, m.ID)
	}
	if ok, err := s.MovieTitleExists(ctx, db, "Alien"); err != nil || !ok {
		t.Fatalf("title exists: %v %v", ok, err)
	}
	m.Genre = "horror"
	if err := s.SaveMovie(ctx, db, m); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetMovie(ctx, db, m.ID)
	if err != nil || got.Genre != "horror" {
		t.Fatalf("get: %v %+v", err, got)
	}
	list, err := s.ListMovies(ctx, db)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}
	if err := s.DeleteMovie(ctx, db, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetMovie(ctx, db, m.ID); err == nil {
		t.Fatalf("expected not found after delete")
	}
}

func TestLimitBody_EnforcesMax(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("tiny")))
	if w.Code != http.StatusOK {
		t.Fatalf("small body expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("this is definitely too long")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("large body expected 413, got %d", w.Code)
	}
}

func TestGroupWithPrefix_RootAndNonRoot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "root") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "api") })

	for path, want := range map[string]string{"/ping": "root", "/api/ping": "api"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("%s = %d %q", path, w.Code, w.Body.String())
		}
	}
}
