package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pkg.aura.care/moodfeed/internal/auth"
	"pkg.aura.care/moodfeed/internal/feed"
	"pkg.aura.care/moodfeed/internal/metrics"
	"pkg.aura.care/moodfeed/internal/moodlog"
	"pkg.aura.care/moodfeed/internal/storage"
	"pkg.aura.care/moodfeed/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t        *testing.T
	handler  http.Handler
	verifier *auth.Verifier
	store    storage.Store
	logs     *observer.ObservedLogs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	reg := prometheus.NewRegistry()
	feeds := feed.NewService(store, zap.NewNop(), feed.WithMetrics(metrics.New(reg)))
	moods := moodlog.NewService(store, feeds, zap.NewNop())
	verifier, err := auth.NewVerifier("test-secret", "aura")
	if err != nil {
		t.Fatal(err)
	}
	core, logs := observer.New(zapcore.WarnLevel)
	a := NewAPI(context.Background(), zap.New(core).Sugar(), feeds, moods, verifier, reg, NewConfig(0, []string{"*"}, 20))
	return &testServer{t: t, handler: a.Handler(), verifier: verifier, store: store, logs: logs}
}

func (s *testServer) token(uid string) string {
	tok, err := s.verifier.Sign(uid, time.Hour)
	if err != nil {
		s.t.Fatal(err)
	}
	return tok
}

// do sends a request as uid ("" for anonymous) and decodes the JSON reply into out.
func (s *testServer) do(method, path, uid, body string, out interface{}) int {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(uid))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			s.t.Fatalf("%s %s: decoding %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestPublishLikeAndFetch(t *testing.T) {
	s := newTestServer(t)

	var e feed.Entry
	if code := s.do(http.MethodPost, "/entries", "alice", `{"mood":"happy","note":"sunny","authorName":"Alice"}`, &e); code != http.StatusCreated {
		t.Fatalf("publish status = %d", code)
	}
	if e.AuthorID != "alice" || e.Mood != feed.MoodHappy || e.LikeCount != 0 {
		t.Fatalf("entry = %+v", e)
	}

	var res feed.LikeResult
	if code := s.do(http.MethodPut, "/entries/"+e.ID+"/like", "bob", "", &res); code != http.StatusOK {
		t.Fatalf("like status = %d", code)
	}
	if !res.Changed || res.LikeCount != 1 || res.EntryID != e.ID {
		t.Errorf("like = %+v", res)
	}
	s.do(http.MethodPut, "/entries/"+e.ID+"/like", "bob", "", &res)
	if res.Changed || res.LikeCount != 1 {
		t.Errorf("repeated like = %+v", res)
	}

	var items []feed.FeedItem
	if code := s.do(http.MethodGet, "/feed", "bob", "", &items); code != http.StatusOK {
		t.Fatalf("feed status = %d", code)
	}
	if len(items) != 1 || !items[0].ViewerHasLiked || items[0].Entry.LikeCount != 1 {
		t.Errorf("bob's feed = %+v", items)
	}
	s.do(http.MethodGet, "/feed?limit=5", "", "", &items)
	if len(items) != 1 || items[0].ViewerHasLiked {
		t.Errorf("anonymous feed = %+v", items)
	}

	if code := s.do(http.MethodDelete, "/entries/"+e.ID+"/like", "bob", "", &res); code != http.StatusOK || res.LikeCount != 0 || res.Liked {
		t.Errorf("unlike = %d %+v", code, res)
	}

	var item feed.FeedItem
	if code := s.do(http.MethodGet, "/entries/"+e.ID, "bob", "", &item); code != http.StatusOK || item.ViewerHasLiked {
		t.Errorf("entry = %d %+v", code, item)
	}
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	var e feed.Entry
	s.do(http.MethodPost, "/entries", "alice", `{"mood":"okay"}`, &e)

	tests := []struct {
		name   string
		method string
		path   string
		uid    string
		body   string
		want   int
	}{
		{"anonymous like", http.MethodPut, "/entries/" + e.ID + "/like", "", "", http.StatusUnauthorized},
		{"anonymous publish", http.MethodPost, "/entries", "", `{"mood":"okay"}`, http.StatusUnauthorized},
		{"like missing entry", http.MethodPut, "/entries/nope/like", "bob", "", http.StatusNotFound},
		{"get missing entry", http.MethodGet, "/entries/nope", "", "", http.StatusNotFound},
		{"unknown mood", http.MethodPost, "/entries", "bob", `{"mood":"ecstatic"}`, http.StatusBadRequest},
		{"no mood", http.MethodPost, "/entries", "bob", `{"note":"hi"}`, http.StatusBadRequest},
		{"long note", http.MethodPost, "/entries", "bob", fmt.Sprintf(`{"mood":"sad","note":%q}`, strings.Repeat("x", feed.MaxNoteLength+1)), http.StatusBadRequest},
		{"zero limit", http.MethodGet, "/feed?limit=0", "", "", http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/feed?limit=many", "", "", http.StatusBadRequest},
		{"anonymous moods", http.MethodGet, "/moods", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				Error string `json:"error"`
			}
			if code := s.do(tt.method, tt.path, tt.uid, tt.body, &body); code != tt.want {
				t.Errorf("status = %d, want %d (%s)", code, tt.want, body.Error)
			}
			if body.Error == "" {
				t.Error("no error message")
			}
		})
	}
}

func TestMalformedEntry(t *testing.T) {
	s := newTestServer(t)
	err := s.store.Put(context.Background(), feed.EntriesCollection, "bad", storage.Document{"mood": "okay", "createdAt": "yesterday"})
	if err != nil {
		t.Fatal(err)
	}

	for _, method := range []string{http.MethodGet, http.MethodPut} {
		path := "/entries/bad"
		if method == http.MethodPut {
			path += "/like"
		}
		var body struct {
			Error string `json:"error"`
		}
		if code := s.do(method, path, "bob", "", &body); code != http.StatusInternalServerError {
			t.Errorf("%s %s: status = %d, want 500", method, path, code)
		}
		if !strings.Contains(body.Error, "malformed record") {
			t.Errorf("%s %s: error = %q", method, path, body.Error)
		}
	}

	if n := s.logs.FilterLevelExact(zapcore.ErrorLevel).Len(); n != 0 {
		t.Errorf("logged %d errors, want none", n)
	}
	if n := s.logs.FilterMessageSnippet("malformed record").FilterLevelExact(zapcore.WarnLevel).Len(); n != 2 {
		t.Errorf("logged %d warnings, want 2", n)
	}
}

func TestInvalidTokenIsRejected(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMoodLogAndShare(t *testing.T) {
	s := newTestServer(t)

	var l moodlog.Log
	if code := s.do(http.MethodPost, "/moods", "carol", `{"mood":"anxious","note":"deadline"}`, &l); code != http.StatusCreated {
		t.Fatalf("add status = %d", code)
	}
	var logs []moodlog.Log
	if code := s.do(http.MethodGet, "/moods", "carol", "", &logs); code != http.StatusOK || len(logs) != 1 || logs[0].ID != l.ID {
		t.Fatalf("recent = %d %+v", code, logs)
	}

	var e feed.Entry
	if code := s.do(http.MethodPost, "/moods/"+l.ID+"/share", "carol", `{"authorName":"Carol"}`, &e); code != http.StatusCreated {
		t.Fatalf("share status = %d", code)
	}
	if e.ID != l.ID || e.AuthorName != "Carol" {
		t.Errorf("shared = %+v", e)
	}
	if code := s.do(http.MethodPost, "/moods/"+l.ID+"/share", "carol", "", nil); code != http.StatusConflict {
		t.Errorf("second share status = %d", code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	var health map[string]string
	if code := s.do(http.MethodGet, "/healthz", "", "", &health); code != http.StatusOK || health["status"] != "ok" {
		t.Errorf("healthz = %d %v", code, health)
	}

	s.do(http.MethodGet, "/feed", "", "", nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "moodfeed_operations_total") {
		t.Errorf("metrics = %d %s", rec.Code, rec.Body.String())
	}
}
