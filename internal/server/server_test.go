package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Yates-Labs/storyprompt/internal/catalogue"
	"github.com/Yates-Labs/storyprompt/internal/config"
	"github.com/Yates-Labs/storyprompt/internal/narrative"
	"github.com/Yates-Labs/storyprompt/internal/sampler"
	"github.com/Yates-Labs/storyprompt/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	*Server
	store   *session.Store
	mock    *narrative.MockLLM
	lastCfg narrative.LLMConfig
}

func testConfig() *config.Config {
	return &config.Config{
		Language:           "ja",
		Template:           "shortshort",
		ElementCount:       3,
		WordCount:          1200,
		ListenAddr:         ":0",
		SessionIdleTimeout: time.Hour,
		Vendor:             "demo",
		VendorTimeout:      time.Second,
		VendorMaxTokens:    3000,
		VendorTemperature:  0.9,
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cat := &catalogue.Catalogue{
		Source: "test.json",
		Groups: []catalogue.Group{
			{Name: "場所", Variants: []string{"灯台", "地下鉄"}},
			{Name: "時代", Variants: []string{"未来"}},
			{Name: "小道具", Variants: []string{"古い鍵", "懐中時計"}},
		},
	}
	store := session.NewStore(cat,
		session.WithSamplerFactory(func() *sampler.Sampler { return sampler.NewSeeded(3) }),
		session.WithInitialElements(3),
	)
	ts := &testServer{store: store, mock: narrative.NewMockLLM("「月の裏側」\n\n静かな物語。")}
	ts.Server = New(store, testConfig(),
		WithRegistry(prometheus.NewRegistry()),
		WithClock(func() time.Time { return time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC) }),
		WithLLMFactory(func(cfg narrative.LLMConfig) (narrative.LLM, error) {
			ts.lastCfg = cfg
			if cfg.Vendor.RequiresAPIKey() && cfg.APIKey == "" {
				return narrative.NewLLM(cfg)
			}
			return ts.mock, nil
		}),
	)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) createSession(t *testing.T, body any) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := gjson.Get(w.Body.String(), "id").String()
	require.NotEmpty(t, id)
	return id
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestIndexServesPage(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "/api/sessions")
}

func TestCatalogue(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/catalogue", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, int64(3), gjson.Get(body, "groups").Int())
	assert.Equal(t, int64(5), gjson.Get(body, "variants").Int())
	assert.Equal(t, "test.json", gjson.Get(body, "source").String())
	assert.Equal(t, int64(2), gjson.Get(body, "items.0.count").Int())
}

func TestOptions_Localized(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/options?lang=en", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, "en", gjson.Get(body, "language").String())
	assert.Equal(t, "Folktale", gjson.Get(body, "genres.0.label").String())
	assert.Equal(t, "demo", gjson.Get(body, "default_vendor").String())
	assert.Equal(t, int64(5), gjson.Get(body, "vendors.#").Int())
	assert.Equal(t, int64(1200), gjson.Get(body, "defaults.story.word_count").Int())

	w = ts.do(t, http.MethodGet, "/api/options", nil)
	assert.Equal(t, "ja", gjson.Get(w.Body.String(), "language").String())
}

func TestNames(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/names?count=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	names := gjson.Get(w.Body.String(), "names").Array()
	assert.Len(t, names, 4)
	for _, n := range names {
		assert.Len(t, []rune(n.String()), 2)
	}

	w = ts.do(t, http.MethodGet, "/api/names?count=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSession_Defaults(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	body := w.Body.String()
	assert.Equal(t, "ja", gjson.Get(body, "language").String())
	assert.NotEmpty(t, gjson.Get(body, "elements").Array())
	assert.Empty(t, gjson.Get(body, "stories").Array())
	assert.False(t, gjson.Get(body, "last").Exists())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestCreateSession_LanguageAndCount(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/sessions", gin.H{"language": "en-US", "element_count": 0})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "en", gjson.Get(w.Body.String(), "language").String())
	assert.Empty(t, gjson.Get(w.Body.String(), "elements").Array())

	w = ts.do(t, http.MethodPost, "/api/sessions", gin.H{"element_count": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionNotFound_Localized(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "session_not_found", gjson.Get(w.Body.String(), "error.code").String())
	assert.Contains(t, gjson.Get(w.Body.String(), "error.message").String(), "セッション")

	w = ts.do(t, http.MethodGet, "/api/sessions/missing?lang=en", nil)
	assert.Equal(t, "Session not found. Please reload the page.", gjson.Get(w.Body.String(), "error.message").String())
}

func TestUpdateSession_Language(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, nil)

	w := ts.do(t, http.MethodPatch, "/api/sessions/"+id, gin.H{"language": "en"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "en", gjson.Get(w.Body.String(), "language").String())

	w = ts.do(t, http.MethodPatch, "/api/sessions/"+id, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, nil)

	w := ts.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, ts.store.Len())

	w = ts.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestElements_EditRemoveAdd(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := gjson.Get(w.Body.String(), "id").String()
	n := len(gjson.Get(w.Body.String(), "elements").Array())
	require.Positive(t, n)

	w = ts.do(t, http.MethodPut, "/api/sessions/"+id+"/elements/0", gin.H{"text": "  嵐の夜  "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, gjson.Get(w.Body.String(), "edited").Bool())

	w = ts.do(t, http.MethodPut, "/api/sessions/"+id+"/elements/9", gin.H{"text": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "index_out_of_range", gjson.Get(w.Body.String(), "error.code").String())

	w = ts.do(t, http.MethodPut, "/api/sessions/"+id+"/elements/abc", gin.H{"text": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/sessions/"+id+"/elements/0", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/sessions/"+id+"/elements/"+strconv.Itoa(n-1), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, gjson.Get(w.Body.String(), "elements").Array(), n-1)
}

func TestElements_AddExhausted(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, gin.H{"element_count": 0})

	codes := map[int]int{}
	for i := 0; i < 8; i++ {
		w := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/elements", nil)
		codes[w.Code]++
	}
	assert.LessOrEqual(t, codes[http.StatusCreated], 5)
	assert.Positive(t, codes[http.StatusConflict])
}

func TestElements_Resample(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, nil)

	w := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/elements/resample", gin.H{"count": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.LessOrEqual(t, len(gjson.Get(w.Body.String(), "elements").Array()), 2)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "requested").Int())

	w = ts.do(t, http.MethodPost, "/api/sessions/"+id+"/elements/resample", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), gjson.Get(w.Body.String(), "requested").Int())
}

func TestPrompt(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, nil)

	w := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/prompt", gin.H{
		"template":   "story",
		"word_count": 800,
		"genre":      "ミステリー",
		"characters": []string{"ミカ", " ", "ソラ"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	text := gjson.Get(body, "prompt").String()
	assert.Contains(t, text, "800")
	assert.Contains(t, text, "ミステリー")
	assert.Contains(t, text, "ミカ、ソラ")
	assert.Contains(t, text, "1. ")
	assert.Equal(t, "20250301_123000_ショートショートプロンプト.txt", gjson.Get(body, "filename").String())
	assert.Equal(t, "story", gjson.Get(body, "template").String())
}

func TestPrompt_Errors(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, gin.H{"element_count": 0})

	w := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/prompt", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "no_elements", gjson.Get(w.Body.String(), "error.code").String())

	id = ts.createSession(t, nil)
	w = ts.do(t, http.MethodPost, "/api/sessions/"+id+"/prompt", gin.H{"word_count": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_word_count", gjson.Get(w.Body.String(), "error.code").String())

	w = ts.do(t, http.MethodPost, "/api/sessions/"+id+"/prompt", gin.H{"template": "sonnet"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPrompt_Download(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, nil)

	w := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/prompt?download=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Body.String(), "1. ")
}

func TestGenerate_RecordsStory(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, nil)

	w := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/stories", gin.H{"vendor": "claude", "api_key": "sk-test"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := w.Body.String()
	assert.Equal(t, "claude", gjson.Get(body, "vendor").String())
	assert.Equal(t, "月の裏側", gjson.Get(body, "title").String())
	assert.Equal(t, "未評価", gjson.Get(body, "rating_label").String())
	assert.Equal(t, int64(1200), gjson.Get(body, "word_count").Int())
	assert.Equal(t, "sk-test", ts.lastCfg.APIKey)
	assert.Equal(t, ts.mock.LastPrompt, gjson.Get(body, "prompt").String())

	w = ts.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, gjson.Get(body, "id").String(), gjson.Get(w.Body.String(), "last.id").String())
	assert.Len(t, gjson.Get(w.Body.String(), "stories").Array(), 1)
}

func TestGenerate_MissingAPIKey(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, nil)

	w := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/stories", gin.H{"vendor": "openai"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "api_key_required", gjson.Get(w.Body.String(), "error.code").String())
	assert.Equal(t, 0, ts.mock.Calls)
}

func TestGenerate_UnknownVendor(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, nil)

	w := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/stories", gin.H{"vendor": "llama"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_vendor", gjson.Get(w.Body.String(), "error.code").String())
}

func TestGenerate_VendorFailureIsBadGateway(t *testing.T) {
	ts := newTestServer(t)
	ts.mock.Error = &narrative.GenerationFailure{Vendor: narrative.VendorGemini, StatusCode: 429, Reason: "quota"}
	id := ts.createSession(t, nil)

	w := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/stories", gin.H{"vendor": "gemini", "api_key": "k"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "generation_failed", gjson.Get(w.Body.String(), "error.code").String())
	assert.Contains(t, gjson.Get(w.Body.String(), "error.message").String(), "Gemini API error: status 429 - quota")

	sess, err := ts.store.Get(id)
	require.NoError(t, err)
	assert.Empty(t, sess.Stories(), "failed generation records nothing")
}

func TestRating(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, nil)

	w := ts.do(t, http.MethodPut, "/api/sessions/"+id+"/stories/last/rating", gin.H{"rating": 3})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no_story", gjson.Get(w.Body.String(), "error.code").String())

	first := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/stories", nil)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/stories", nil)
	require.Equal(t, http.StatusCreated, second.Code)

	w = ts.do(t, http.MethodPut, "/api/sessions/"+id+"/stories/last/rating", gin.H{"rating": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "☆☆", gjson.Get(w.Body.String(), "stars").String())

	firstID := gjson.Get(first.Body.String(), "id").String()
	w = ts.do(t, http.MethodPut, "/api/sessions/"+id+"/stories/"+firstID+"/rating", gin.H{"rating": 5})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPut, "/api/sessions/"+id+"/stories/last/rating", gin.H{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_rating", gjson.Get(w.Body.String(), "error.code").String())

	w = ts.do(t, http.MethodPut, "/api/sessions/"+id+"/stories/last/rating", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/sessions/"+id+"/stories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stories := gjson.Get(w.Body.String(), "stories").Array()
	require.Len(t, stories, 2)
	assert.Equal(t, firstID, stories[0].Get("id").String())
	assert.Equal(t, int64(5), stories[0].Get("rating").Int())
	assert.Equal(t, int64(2), stories[1].Get("rating").Int())
}

func TestStories_ExportAndDownload(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, nil)

	w := ts.do(t, http.MethodGet, "/api/sessions/"+id+"/stories/download", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/sessions/"+id+"/stories", nil).Code)

	w = ts.do(t, http.MethodGet, "/api/sessions/"+id+"/stories?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "0.rank").Int())

	w = ts.do(t, http.MethodGet, "/api/sessions/"+id+"/stories?format=text", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), strings.Repeat("=", 80))

	w = ts.do(t, http.MethodGet, "/api/sessions/"+id+"/stories?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/sessions/"+id+"/stories/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	disposition := w.Header().Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(disposition, "attachment"), disposition)
	assert.Contains(t, disposition, "20250301_1230")
	assert.Contains(t, w.Body.String(), "月の裏側")

	sess, err := ts.store.Get(id)
	require.NoError(t, err)
	assert.Empty(t, sess.Stories(), "download resets the stories")
}

func TestStories_Reset(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, nil)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/sessions/"+id+"/stories", nil).Code)

	w := ts.do(t, http.MethodDelete, "/api/sessions/"+id+"/stories", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Empty(t, gjson.Get(w.Body.String(), "stories").Array())
	assert.False(t, gjson.Get(w.Body.String(), "last").Exists())
}

func TestMetrics_CountsGenerations(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t, nil)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/sessions/"+id+"/stories", nil).Code)

	w := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `storyprompt_vendor_requests_total{outcome="success"`)
	assert.Contains(t, w.Body.String(), `vendor="demo"} 1`)
	assert.Contains(t, w.Body.String(), "storyprompt_sessions_active 1")
}

func TestRecovery_RendersLocalizedError(t *testing.T) {
	ts := newTestServer(t)
	ts.engine.GET("/panic", func(c *gin.Context) { panic(errors.New("boom")) })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set("Accept-Language", "en")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "A system error occurred. Please reload the page.", gjson.Get(w.Body.String(), "error.message").String())
}
