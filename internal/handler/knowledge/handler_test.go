package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	knowledgeModel "github.com/vanba/spiritchat/backend/internal/model/knowledge"
	profileModel "github.com/vanba/spiritchat/backend/internal/model/profile"
)

type fakeStore struct {
	entries []knowledgeModel.Entry

	lastTradition profileModel.Tradition
	lastEmotion   string
	lastTerm      string
	lastLimit     int
}

func (f *fakeStore) Query(_ context.Context, tradition profileModel.Tradition, emotion string, limit int) ([]knowledgeModel.Entry, error) {
	f.lastTradition = tradition
	f.lastEmotion = emotion
	f.lastLimit = limit
	return f.entries, nil
}

func (f *fakeStore) Search(_ context.Context, term string, tradition profileModel.Tradition, _ string, limit int) ([]knowledgeModel.Entry, error) {
	f.lastTerm = term
	f.lastTradition = tradition
	f.lastLimit = limit
	return f.entries, nil
}

func setupRouter(store *fakeStore) *chi.Mux {
	r := chi.NewRouter()
	New(store).RegisterRoutes(r)
	return r
}

func TestQueryReturnsEntries(t *testing.T) {
	store := &fakeStore{entries: []knowledgeModel.Entry{{
		ID:                 uuid.New(),
		Tradition:          profileModel.TraditionBuddhism,
		TranslationText:    "Peace comes from within.",
		ScriptureReference: "Dhammapada",
	}}}
	r := setupRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/knowledge?tradition=buddhism&emotion=anxiety", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var entries []knowledgeModel.Entry
	if err := json.Unmarshal(resp.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 1 || entries[0].ScriptureReference != "Dhammapada" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if store.lastTradition != profileModel.TraditionBuddhism || store.lastEmotion != "anxiety" {
		t.Fatalf("query not forwarded: tradition=%q emotion=%q", store.lastTradition, store.lastEmotion)
	}
}

func TestQueryRejectsUnknownTradition(t *testing.T) {
	r := setupRouter(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/knowledge?tradition=klingon", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSearchRequiresTerm(t *testing.T) {
	r := setupRouter(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/knowledge/search", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSearchForwardsTerm(t *testing.T) {
	store := &fakeStore{}
	r := setupRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/knowledge/search?q=duty&limit=5", nil)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if store.lastTerm != "duty" || store.lastLimit != 5 {
		t.Fatalf("search not forwarded: term=%q limit=%d", store.lastTerm, store.lastLimit)
	}
}

func TestLimitParamBounds(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"", 20},
		{"5", 5},
		{"0", 20},
		{"-3", 20},
		{"500", 20},
		{"abc", 20},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/knowledge?limit="+tc.raw, nil)
		if got := limitParam(req, 20); got != tc.want {
			t.Errorf("limit=%q: got %d, want %d", tc.raw, got, tc.want)
		}
	}
}
