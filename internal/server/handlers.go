package server

import (
	"embed"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"github.com/Yates-Labs/storyprompt/internal/narrative"
	"github.com/Yates-Labs/storyprompt/internal/prompt"
	"github.com/Yates-Labs/storyprompt/internal/sampler"
	"github.com/Yates-Labs/storyprompt/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//go:embed web/index.html
var webFS embed.FS

const (
	sessionKey = "session"
	maxNames   = 20
)

// requestLanguage picks the language for a request without a session:
// the lang query parameter first, then Accept-Language.
func requestLanguage(c *gin.Context) language.Tag {
	if sess, ok := c.Get(sessionKey); ok {
		return sess.(*session.Session).Language()
	}
	return i18n.Match(c.Query("lang"), c.GetHeader("Accept-Language"))
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

// bindOptionalJSON decodes the body into obj. An empty body leaves obj untouched.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleIndex(c *gin.Context) {
	page, err := webFS.ReadFile("web/index.html")
	if err != nil {
		s.handleError(c, err, requestLanguage(c))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

type catalogueGroup struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type catalogueResponse struct {
	Source   string           `json:"source"`
	Fallback bool             `json:"fallback"`
	Groups   int              `json:"groups"`
	Variants int              `json:"variants"`
	Items    []catalogueGroup `json:"items"`
}

func (s *Server) handleCatalogue(c *gin.Context) {
	cat := s.store.Catalogue()
	items := make([]catalogueGroup, len(cat.Groups))
	for i, g := range cat.Groups {
		items[i] = catalogueGroup{Item: g.Name, Count: len(g.Variants)}
	}
	c.JSON(http.StatusOK, catalogueResponse{
		Source:   cat.Source,
		Fallback: cat.Fallback,
		Groups:   cat.Len(),
		Variants: cat.TotalVariants(),
		Items:    items,
	})
}

type vendorOption struct {
	Key            string `json:"key"`
	Label          string `json:"label"`
	RequiresAPIKey bool   `json:"requires_api_key"`
	Model          string `json:"model"`
}

type optionsResponse struct {
	Language  string                            `json:"language"`
	Languages []string                          `json:"languages"`
	Vendors   []vendorOption                    `json:"vendors"`
	Vendor    narrative.Vendor                  `json:"default_vendor"`
	Templates []prompt.Template                 `json:"templates"`
	Template  prompt.Template                   `json:"default_template"`
	Genres    []prompt.Option                   `json:"genres"`
	Endings   []prompt.Option                   `json:"endings"`
	Defaults  map[prompt.Template]prompt.Params `json:"defaults"`
}

func (s *Server) handleOptions(c *gin.Context) {
	lang := requestLanguage(c)

	var langs []string
	for _, tag := range i18n.Supported() {
		langs = append(langs, tag.String())
	}
	var vendors []vendorOption
	for _, v := range narrative.Vendors() {
		vendors = append(vendors, vendorOption{
			Key:            string(v),
			Label:          v.DisplayName(),
			RequiresAPIKey: v.RequiresAPIKey(),
			Model:          s.cfg.LLMConfig(v, "").Model,
		})
	}
	templates := []prompt.Template{prompt.TemplateShortShort, prompt.TemplateStory}
	defaults := make(map[prompt.Template]prompt.Params, len(templates))
	for _, tmpl := range templates {
		d := prompt.Defaults(lang, tmpl)
		d.WordCount = s.cfg.WordCount
		defaults[tmpl] = d
	}

	c.JSON(http.StatusOK, optionsResponse{
		Language:  lang.String(),
		Languages: langs,
		Vendors:   vendors,
		Vendor:    s.cfg.DefaultVendor(),
		Templates: templates,
		Template:  s.cfg.PromptTemplate(),
		Genres:    prompt.Genres(lang),
		Endings:   prompt.Endings(lang),
		Defaults:  defaults,
	})
}

func (s *Server) handleNames(c *gin.Context) {
	count := 3
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxNames {
			badRequest(c, requestLanguage(c))
			return
		}
		count = n
	}
	names := prompt.NewNameGenerator(sampler.NewRandom().Source()).Names(count)
	c.JSON(http.StatusOK, gin.H{"names": names})
}

// loadSession resolves the :id parameter and stores the session on the context.
func (s *Server) loadSession(c *gin.Context) {
	sess, err := s.store.Get(c.Param("id"))
	if err != nil {
		s.handleError(c, err, requestLanguage(c))
		return
	}
	c.Set(sessionKey, sess)
	c.Next()
}

type storyResponse struct {
	session.StoryRecord
	Title       string `json:"title"`
	Stars       string `json:"stars"`
	RatingLabel string `json:"rating_label"`
}

func newStoryResponse(r session.StoryRecord, lang language.Tag) storyResponse {
	return storyResponse{
		StoryRecord: r,
		Title:       session.ExtractTitle(r.Story, i18n.Text(lang, "export.untitled")),
		Stars:       session.Stars(r.Rating, lang),
		RatingLabel: session.RatingLabel(r.Rating, lang),
	}
}

type sessionResponse struct {
	ID        string                `json:"id"`
	Language  string                `json:"language"`
	CreatedAt time.Time             `json:"created_at"`
	Elements  []session.ElementView `json:"elements"`
	Stories   []storyResponse       `json:"stories"`
	Last      *storyResponse        `json:"last,omitempty"`
}

func newSessionResponse(sess *session.Session) sessionResponse {
	lang := sess.Language()
	records := sess.Stories()
	stories := make([]storyResponse, len(records))
	for i, r := range records {
		stories[i] = newStoryResponse(r, lang)
	}
	resp := sessionResponse{
		ID:        sess.ID,
		Language:  lang.String(),
		CreatedAt: sess.CreatedAt,
		Elements:  sess.Elements(),
		Stories:   stories,
	}
	if last, ok := sess.Last(); ok {
		lr := newStoryResponse(last, lang)
		resp.Last = &lr
	}
	return resp
}

type createSessionRequest struct {
	Language     string `json:"language"`
	ElementCount *int   `json:"element_count" binding:"omitempty,min=0,max=100"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, requestLanguage(c))
		return
	}

	lang := s.cfg.LanguageTag()
	if req.Language != "" || c.Query("lang") != "" || c.GetHeader("Accept-Language") != "" {
		lang = i18n.Match(req.Language, c.Query("lang"), c.GetHeader("Accept-Language"))
	}

	sess := s.store.Create(lang)
	if req.ElementCount != nil {
		sess.Resample(*req.ElementCount)
	}
	s.log.Info("Session created", zap.String("session_id", sess.ID), zap.String("language", lang.String()))
	c.JSON(http.StatusCreated, newSessionResponse(sess))
}

func (s *Server) handleGetSession(c *gin.Context) {
	c.JSON(http.StatusOK, newSessionResponse(currentSession(c)))
}

type updateSessionRequest struct {
	Language string `json:"language" binding:"required"`
}

func (s *Server) handleUpdateSession(c *gin.Context) {
	sess := currentSession(c)
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, sess.Language())
		return
	}
	sess.SetLanguage(i18n.Match(req.Language))
	c.JSON(http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	sess := currentSession(c)
	if err := s.store.Delete(sess.ID); err != nil {
		s.handleError(c, err, sess.Language())
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAddElement(c *gin.Context) {
	sess := currentSession(c)
	view, err := sess.AddElement()
	if err != nil {
		s.handleError(c, err, sess.Language())
		return
	}
	c.JSON(http.StatusCreated, view)
}

type resampleRequest struct {
	Count *int `json:"count" binding:"omitempty,min=0,max=100"`
}

func (s *Server) handleResample(c *gin.Context) {
	sess := currentSession(c)
	var req resampleRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, sess.Language())
		return
	}
	count := s.cfg.ElementCount
	if req.Count != nil {
		count = *req.Count
	}
	views := sess.Resample(count)
	c.JSON(http.StatusOK, gin.H{"elements": views, "requested": count})
}

func elementIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, requestLanguage(c))
		return 0, false
	}
	return index, true
}

type editElementRequest struct {
	Text *string `json:"text" binding:"required"`
}

func (s *Server) handleEditElement(c *gin.Context) {
	sess := currentSession(c)
	index, ok := elementIndex(c)
	if !ok {
		return
	}
	var req editElementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, sess.Language())
		return
	}
	view, err := sess.EditElement(index, *req.Text)
	if err != nil {
		s.handleError(c, err, sess.Language())
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleRemoveElement(c *gin.Context) {
	sess := currentSession(c)
	index, ok := elementIndex(c)
	if !ok {
		return
	}
	if err := sess.RemoveElement(index); err != nil {
		s.handleError(c, err, sess.Language())
		return
	}
	c.JSON(http.StatusOK, gin.H{"elements": sess.Elements()})
}

type promptRequest struct {
	Template   string   `json:"template"`
	WordCount  int      `json:"word_count"`
	Genre      string   `json:"genre"`
	Ending     string   `json:"ending"`
	Characters []string `json:"characters"`
}

// params resolves the template and fills unset parameters from the defaults.
func (s *Server) params(req promptRequest, lang language.Tag) (prompt.Params, prompt.Template, error) {
	tmpl := s.cfg.PromptTemplate()
	if req.Template != "" {
		var err error
		if tmpl, err = prompt.ParseTemplate(req.Template); err != nil {
			return prompt.Params{}, "", err
		}
	}
	var characters []string
	for _, name := range req.Characters {
		if name = strings.TrimSpace(name); name != "" {
			characters = append(characters, name)
		}
	}
	params := prompt.Params{
		WordCount:  req.WordCount,
		Genre:      strings.TrimSpace(req.Genre),
		Ending:     strings.TrimSpace(req.Ending),
		Characters: characters,
	}
	if params.WordCount == 0 {
		params.WordCount = s.cfg.WordCount
	}
	return params.WithDefaults(lang, tmpl), tmpl, nil
}

func (s *Server) handlePrompt(c *gin.Context) {
	sess := currentSession(c)
	lang := sess.Language()
	var req promptRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, lang)
		return
	}
	params, tmpl, err := s.params(req, lang)
	if err != nil {
		s.handleError(c, err, lang)
		return
	}
	text, err := sess.BuildPrompt(params, tmpl)
	if err != nil {
		s.handleError(c, err, lang)
		return
	}

	filename := session.PromptFilename(lang, s.now())
	if c.Query("download") != "" {
		attachment(c, filename, "text/plain; charset=utf-8", []byte(text))
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": text, "filename": filename, "params": params, "template": tmpl})
}

type generateRequest struct {
	promptRequest
	Vendor string `json:"vendor"`
	APIKey string `json:"api_key"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	sess := currentSession(c)
	lang := sess.Language()
	var req generateRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, lang)
		return
	}

	vendor := s.cfg.DefaultVendor()
	if req.Vendor != "" {
		var err error
		if vendor, err = narrative.ParseVendor(req.Vendor); err != nil {
			s.handleError(c, err, lang)
			return
		}
	}
	params, tmpl, err := s.params(req.promptRequest, lang)
	if err != nil {
		s.handleError(c, err, lang)
		return
	}

	llmCfg := s.cfg.LLMConfig(vendor, strings.TrimSpace(req.APIKey))
	llm, err := s.newLLM(llmCfg)
	if err != nil {
		s.handleError(c, err, lang)
		return
	}
	gen := narrative.NewGenerator(s.metrics.Instrument(vendor, llm), llmCfg)

	record, err := sess.Generate(c.Request.Context(), gen, params, tmpl)
	if err != nil {
		s.handleError(c, err, lang)
		return
	}
	s.log.Info("Story generated",
		zap.String("session_id", sess.ID),
		zap.String("vendor", string(record.Vendor)),
		zap.String("model", record.Model),
		zap.Int("elements", len(record.Elements)),
	)
	c.JSON(http.StatusCreated, newStoryResponse(record, lang))
}

func (s *Server) handleListStories(c *gin.Context) {
	sess := currentSession(c)
	lang := sess.Language()

	raw := c.Query("format")
	if raw == "" {
		resp := newSessionResponse(sess)
		c.JSON(http.StatusOK, gin.H{"stories": resp.Stories})
		return
	}
	format, err := session.ParseFormat(raw)
	if err != nil {
		s.handleError(c, err, lang)
		return
	}

	contentType := "text/plain; charset=utf-8"
	if format == session.FormatJSON {
		contentType = "application/json; charset=utf-8"
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", contentType)
	if err := sess.Export(c.Writer, format, s.now()); err != nil {
		_ = c.Error(err)
	}
}

func (s *Server) handleResetStories(c *gin.Context) {
	currentSession(c).ResetStories()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDownload(c *gin.Context) {
	sess := currentSession(c)
	filename, data, err := sess.Download(s.now())
	if err != nil {
		s.handleError(c, err, sess.Language())
		return
	}
	attachment(c, filename, "text/plain; charset=utf-8", data)
}

type rateRequest struct {
	Rating *int `json:"rating" binding:"required"`
}

func (s *Server) handleRate(c *gin.Context) {
	sess := currentSession(c)
	lang := sess.Language()
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, lang)
		return
	}

	var (
		record session.StoryRecord
		err    error
	)
	if id := c.Param("story"); id == "last" {
		record, err = sess.Rate(*req.Rating)
	} else {
		record, err = sess.RateStory(id, *req.Rating)
	}
	if err != nil {
		s.handleError(c, err, lang)
		return
	}
	c.JSON(http.StatusOK, newStoryResponse(record, lang))
}

func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, contentType, data)
}
