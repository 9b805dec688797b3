package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medicalcenter/clinic-system/internal/api/handler"
	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/core/service"
)

const (
	cookieName = "clinic_session"
	testSecret = "integration-secret"
)

// memStore is an in-memory credential store.
type memStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
	seq   int
}

func newMemStore() *memStore { return &memStore{users: make(map[string]*domain.User)} }

func roleOf(name domain.RoleName) domain.Role {
	return domain.Role{ID: "role-" + string(name), Name: name}
}

func (s *memStore) add(t *testing.T, username, password string, role domain.RoleName) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	u := &domain.User{ID: fmt.Sprintf("u-%d", s.seq), Username: username, Name: username, PasswordHash: string(hash), Role: roleOf(role)}
	s.users[u.ID] = u
	return u
}

func (s *memStore) copyOf(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (s *memStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return s.copyOf(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return s.copyOf(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *memStore) List(context.Context) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, s.copyOf(u))
	}
	return out, nil
}

func (s *memStore) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return nil, domain.ErrUserExists
		}
	}
	s.seq++
	c := *u
	c.ID = fmt.Sprintf("u-%d", s.seq)
	s.users[c.ID] = &c
	return s.copyOf(&c), nil
}

func (s *memStore) bump(id string, fn func(*domain.User)) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	fn(u)
	u.SessionVersion++
	return s.copyOf(u), nil
}

func (s *memStore) UpdateRole(_ context.Context, id string, role domain.Role) (*domain.User, error) {
	return s.bump(id, func(u *domain.User) { u.Role = role })
}

func (s *memStore) UpdatePassword(_ context.Context, id, hash string) (*domain.User, error) {
	return s.bump(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (s *memStore) FindRoleByName(_ context.Context, name domain.RoleName) (*domain.Role, error) {
	r := roleOf(name)
	return &r, nil
}

func (s *memStore) FindSpecialty(context.Context, string) (*domain.Specialty, error) {
	return nil, domain.ErrSpecialtyNotFound
}

func (s *memStore) ListSpecialties(context.Context) ([]domain.Specialty, error) {
	return []domain.Specialty{{ID: "s-1", Name: "Radiología"}}, nil
}

// memRevoker is an in-memory session revocation store.
type memRevoker struct {
	mu       sync.Mutex
	versions map[string]int64
	denied   map[string]bool
}

func newMemRevoker() *memRevoker {
	return &memRevoker{versions: make(map[string]int64), denied: make(map[string]bool)}
}

func (r *memRevoker) PublishVersion(_ context.Context, userID string, v int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[userID] = v
	return nil
}

func (r *memRevoker) RevokeToken(_ context.Context, id string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denied[id] = true
	return nil
}

func (r *memRevoker) IsRevoked(_ context.Context, s *domain.Session) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.denied[s.TokenID] || s.Version < r.versions[s.UserID], nil
}

type memTags struct {
	mu   sync.Mutex
	tags []*domain.Tag
}

func (m *memTags) Create(_ context.Context, tag *domain.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tags {
		if t.Name == tag.Name {
			return domain.ErrTagExists
		}
	}
	tag.ID = fmt.Sprintf("t-%d", len(m.tags)+1)
	m.tags = append(m.tags, tag)
	return nil
}

func (m *memTags) List(context.Context) ([]*domain.Tag, error) { return m.tags, nil }

type memRooms struct {
	rooms map[string]*domain.Room
}

func (m *memRooms) Create(_ context.Context, room *domain.Room) error {
	room.ID = fmt.Sprintf("room-%d", len(m.rooms)+1)
	m.rooms[room.ID] = room
	return nil
}

func (m *memRooms) FindByID(_ context.Context, id string) (*domain.Room, error) {
	if r, ok := m.rooms[id]; ok {
		c := *r
		return &c, nil
	}
	return nil, domain.ErrRoomNotFound
}

func (m *memRooms) Update(_ context.Context, room *domain.Room) error {
	m.rooms[room.ID] = room
	return nil
}

func (m *memRooms) List(context.Context) ([]*domain.Room, error) {
	out := make([]*domain.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out, nil
}

type memAudit struct{}

func (memAudit) Insert(context.Context, *domain.AuditEvent) error            { return nil }
func (memAudit) Latest(context.Context, int) ([]*domain.AuditEvent, error) { return nil, nil }

type testEnv struct {
	e       *echo.Echo
	store   *memStore
	tokens  *service.TokenManager
	table   *domain.PermissionTable
	revoker *memRevoker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	seal := filepath.Join(t.TempDir(), "seal.png")
	if err := os.WriteFile(seal, []byte("\x89PNG\r\n\x1a\n"), 0o600); err != nil {
		t.Fatalf("write seal: %v", err)
	}

	log := zerolog.Nop()
	store := newMemStore()
	revoker := newMemRevoker()
	tokens := service.NewTokenManager(testSecret, time.Hour)
	table := DefaultPermissions()

	e := NewRouter(Deps{
		Log:               log,
		Auth:              service.NewAuthService(store, tokens, revoker, nil, log),
		Verifier:          tokens,
		Revocations:       revoker,
		Tags:              service.NewTagService(&memTags{}, log),
		Rooms:             service.NewRoomService(&memRooms{rooms: map[string]*domain.Room{}}, log),
		Audit:             service.NewAuditService(memAudit{}, log),
		Permissions:       table,
		Cookie:            handler.CookieConfig{Name: cookieName},
		LoginPath:         "/login",
		LandingPath:       "/dashboard",
		SealPath:          seal,
		MetricsRegisterer: prometheus.NewRegistry(),
		MetricsGatherer:   prometheus.NewRegistry(),
	})
	return &testEnv{e: e, store: store, tokens: tokens, table: table, revoker: revoker}
}

func (env *testEnv) do(method, target, body string, ck *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if ck != nil {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/auth/login", fmt.Sprintf(`{"username":%q,"password":%q}`, username, password), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, rec.Code, rec.Body.String())
	}
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == cookieName {
			return ck
		}
	}
	t.Fatalf("login %s: no session cookie", username)
	return nil
}

func (env *testEnv) sessionFor(t *testing.T, u *domain.User) *http.Cookie {
	t.Helper()
	token, _, err := env.tokens.Issue(u.Session())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return &http.Cookie{Name: cookieName, Value: token}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	msg, _ := body["error"].(string)
	return msg
}

func TestRouter_AdminCreatesTagRecepcionForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.store.add(t, "admin", "password123", domain.RoleAdmin)
	recepcion := env.store.add(t, "rita", "password123", domain.RoleRecepcion)

	admin := env.login(t, "admin", "password123")
	if rec := env.do(http.MethodPost, "/api/tags", `{"name":"x"}`, admin); rec.Code != http.StatusCreated {
		t.Fatalf("admin: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec := env.do(http.MethodPost, "/api/tags", `{"name":"y"}`, env.sessionFor(t, recepcion))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("recepcion: expected 403, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); !strings.Contains(msg, "admin only") {
		t.Fatalf("expected admin-only message, got %q", msg)
	}

	if rec := env.do(http.MethodGet, "/api/tags", "", env.sessionFor(t, recepcion)); rec.Code != http.StatusOK {
		t.Fatalf("recepcion list tags: expected 200, got %d", rec.Code)
	}
}

func TestRouter_LoginFailureIsGeneric(t *testing.T) {
	env := newTestEnv(t)
	env.store.add(t, "admin", "password123", domain.RoleAdmin)

	wrong := env.do(http.MethodPost, "/api/auth/login", `{"username":"admin","password":"nope"}`, nil)
	unknown := env.do(http.MethodPost, "/api/auth/login", `{"username":"ghost","password":"nope"}`, nil)

	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Fatalf("responses differ: %q vs %q", wrong.Body.String(), unknown.Body.String())
	}
}

func TestRouter_NoSessionOnAPIIs401(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/rooms", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "not authorized" {
		t.Fatalf("unexpected message %q", msg)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "" {
		t.Fatalf("API must not redirect, got Location %q", loc)
	}
}

func TestRouter_RadiologySeal(t *testing.T) {
	env := newTestEnv(t)
	radiologo := env.store.add(t, "rx", "password123", domain.RoleRadiologo)
	caja := env.store.add(t, "cash", "password123", domain.RoleCaja)

	rec := env.do(http.MethodGet, "/api/radiology/seal", "", env.sessionFor(t, radiologo))
	if rec.Code != http.StatusOK {
		t.Fatalf("radiologo: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}

	if rec := env.do(http.MethodGet, "/api/radiology/seal", "", env.sessionFor(t, caja)); rec.Code != http.StatusForbidden {
		t.Fatalf("caja: expected 403, got %d", rec.Code)
	}
}

func TestRouter_PagesRedirectOnce(t *testing.T) {
	env := newTestEnv(t)
	admin := env.store.add(t, "admin", "password123", domain.RoleAdmin)

	rec := env.do(http.MethodGet, "/dashboard", "", nil)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/login" {
		t.Fatalf("expected 302 to /login, got %d %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}

	rec = env.do(http.MethodGet, "/login", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login page must render without a session, got %d", rec.Code)
	}

	ck := env.sessionFor(t, admin)
	rec = env.do(http.MethodGet, "/login", "", ck)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/dashboard" {
		t.Fatalf("expected authenticated login visit to land on /dashboard, got %d", rec.Code)
	}

	rec = env.do(http.MethodGet, "/dashboard", "", ck)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "admin") {
		t.Fatalf("expected dashboard, got %d", rec.Code)
	}
}

func TestRouter_PermissionChangeAppliesNextRequest(t *testing.T) {
	env := newTestEnv(t)
	recepcion := env.store.add(t, "rita", "password123", domain.RoleRecepcion)
	ck := env.sessionFor(t, recepcion)

	if rec := env.do(http.MethodPost, "/api/rooms", `{"name":"A1","floor":1}`, ck); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	env.table.Set(http.MethodPost, "/api/rooms", domain.RoleAdmin)

	if rec := env.do(http.MethodPost, "/api/rooms", `{"name":"A2","floor":1}`, ck); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 after table change, got %d", rec.Code)
	}
}

func TestRouter_RoleChangeRevokesLiveSession(t *testing.T) {
	env := newTestEnv(t)
	env.store.add(t, "admin", "password123", domain.RoleAdmin)
	target := env.store.add(t, "rita", "password123", domain.RoleAdmin)

	admin := env.login(t, "admin", "password123")
	stale := env.login(t, "rita", "password123")

	if rec := env.do(http.MethodGet, "/api/users", "", stale); rec.Code != http.StatusOK {
		t.Fatalf("expected rita admin access before demotion, got %d", rec.Code)
	}

	rec := env.do(http.MethodPatch, "/api/users/"+target.ID+"/role", `{"role":"caja"}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("role change: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec := env.do(http.MethodGet, "/api/users", "", stale); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected stale admin session rejected, got %d", rec.Code)
	}

	fresh := env.login(t, "rita", "password123")
	if rec := env.do(http.MethodGet, "/api/users", "", fresh); rec.Code != http.StatusForbidden {
		t.Fatalf("expected caja forbidden on users, got %d", rec.Code)
	}
}

func TestRouter_LogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	env.store.add(t, "admin", "password123", domain.RoleAdmin)
	ck := env.login(t, "admin", "password123")

	if rec := env.do(http.MethodPost, "/api/auth/logout", "", ck); rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/auth/me", "", ck); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token rejected, got %d", rec.Code)
	}
}

func TestRouter_ExemptPathsSkipVerification(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodGet, "/health", "", &http.Cookie{Name: cookieName, Value: "garbage"}); rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
}

func TestRouter_GarbageTokenTreatedAsAbsent(t *testing.T) {
	env := newTestEnv(t)
	ck := &http.Cookie{Name: cookieName, Value: "not.a.jwt"}

	if rec := env.do(http.MethodGet, "/api/rooms", "", ck); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/dashboard", "", ck); rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
}

func TestRouter_ExpiredTokenTreatedAsAbsent(t *testing.T) {
	env := newTestEnv(t)
	past := time.Now().Add(-2 * time.Hour)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       "u-1",
		"username": "admin",
		"name":     "admin",
		"role":     map[string]string{"id": "role-admin", "name": "admin"},
		"ver":      0,
		"iss":      "clinic-system",
		"jti":      "expired",
		"iat":      past.Unix(),
		"exp":      past.Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ck := &http.Cookie{Name: cookieName, Value: raw}

	if rec := env.do(http.MethodGet, "/api/rooms", "", ck); rec.Code != http.StatusUnauthorized {
		t.Fatalf("api: expected 401, got %d", rec.Code)
	}
	rec := env.do(http.MethodGet, "/dashboard", "", ck)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/login" {
		t.Fatalf("page: expected 302 to /login, got %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/login", "", ck); rec.Code != http.StatusOK {
		t.Fatalf("login page with expired token must render, got %d", rec.Code)
	}
}
