package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	attdomain "github.com/handedalcali/qr-attendance/internal/attendance/domain"
	attrepo "github.com/handedalcali/qr-attendance/internal/attendance/repository"
	"github.com/handedalcali/qr-attendance/internal/security"
	"github.com/handedalcali/qr-attendance/internal/session/domain"
	sessrepo "github.com/handedalcali/qr-attendance/internal/session/repository"
	"github.com/handedalcali/qr-attendance/internal/session/service"
	"github.com/handedalcali/qr-attendance/internal/token"
)

type fixture struct {
	router   *gin.Engine
	sessions *sessrepo.MemoryRepository
	ledger   *attrepo.MemoryRepository
	codec    *token.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signer, err := security.NewSigner("test_secret")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	codec := token.NewCodec(signer)
	sessions := sessrepo.NewMemoryRepository()
	ledger := attrepo.NewMemoryRepository()
	svc := service.New(sessions, ledger, codec, 10*time.Minute)
	h := New(svc, nil)

	r := gin.New()
	r.POST("/api/sessions", h.Create)
	r.GET("/api/sessions/:sessionId/students", h.Students)
	r.POST("/api/sessions/:sessionId/regenerate", h.Regenerate)
	r.POST("/api/sessions/:sessionId/clear", h.Clear)
	r.GET("/api/sessions/:sessionId/export", h.Export)
	return &fixture{router: r, sessions: sessions, ledger: ledger, codec: codec}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/sessions", gin.H{"duration": "5m", "courseName": "Networks 101"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	id, _ := body["sessionId"].(string)
	if len(id) != 12 {
		t.Errorf("sessionId %q, want 12 hex chars", id)
	}
	if body["qrText"] == "" || body["qrText"] == nil {
		t.Error("qrText missing")
	}
	if body["token"] == nil {
		t.Error("token missing")
	}
}

func TestCreate_EmptyBody(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/sessions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
}

func TestCreate_BadDuration(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/sessions", gin.H{"duration": "banana"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestStudents(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	err := f.sessions.Create(context.Background(), &domain.Session{
		ID:        "abc123def456",
		StartedAt: now,
		ExpiresAt: now.Add(time.Minute),
		Roster: []domain.RosterEntry{
			{StudentID: "s1", StudentName: "Ada", CheckedInAt: now},
		},
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}

	w := f.do(t, http.MethodGet, "/api/sessions/abc123def456/students", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	students, _ := body["students"].([]any)
	if len(students) != 1 {
		t.Fatalf("students = %v, want 1 entry", body["students"])
	}
	entry := students[0].(map[string]any)
	if entry["id"] != "s1" || entry["name"] != "Ada" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["timestamp"].(float64); !ok {
		t.Errorf("timestamp missing or not a number: %v", entry["timestamp"])
	}
}

func TestStudents_NotFound(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/sessions/000000000000/students", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}

func TestRegenerate(t *testing.T) {
	f := newFixture(t)
	created := decodeBody(t, f.do(t, http.MethodPost, "/api/sessions", gin.H{"duration": "1m"}))
	id := created["sessionId"].(string)

	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/regenerate", gin.H{"duration": "5m"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["qrText"] == nil || body["token"] == nil {
		t.Errorf("renewed response missing token: %v", body)
	}
	newExpiry := int64(body["expiresAt"].(float64))
	oldExpiry := int64(created["expiresAt"].(float64))
	if newExpiry <= oldExpiry {
		t.Errorf("renewed expiry %d not after original %d", newExpiry, oldExpiry)
	}
}

func TestClearAndExport(t *testing.T) {
	f := newFixture(t)
	created := decodeBody(t, f.do(t, http.MethodPost, "/api/sessions", nil))
	id := created["sessionId"].(string)

	now := time.Now().UTC()
	rec := &attdomain.Record{ID: "rec-1", SessionID: id, StudentID: "s1", StudentName: "Ada", RecordedAt: now}
	if err := f.ledger.CreateUnique(context.Background(), rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	if err := f.sessions.UpsertRosterEntry(context.Background(), id, domain.RosterEntry{StudentID: "s1", StudentName: "Ada", CheckedInAt: now}); err != nil {
		t.Fatalf("seed roster: %v", err)
	}

	w := f.do(t, http.MethodGet, "/api/sessions/"+id+"/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: status %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["count"].(float64) != 1 {
		t.Errorf("export count = %v, want 1", body["count"])
	}

	if w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/clear", nil); w.Code != http.StatusOK {
		t.Fatalf("clear: status %d", w.Code)
	}

	body = decodeBody(t, f.do(t, http.MethodGet, "/api/sessions/"+id+"/export", nil))
	if body["count"].(float64) != 0 {
		t.Errorf("export after clear count = %v, want 0", body["count"])
	}
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://attendance.example.com"}
	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:5173", true},
		{"https://attendance.example.com", true},
		{"https://ATTENDANCE.example.com/", true},
		{"https://evil.example.com", false},
	}
	for _, tc := range cases {
		if got := originAllowed(tc.origin, allowed); got != tc.want {
			t.Errorf("originAllowed(%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}
}
