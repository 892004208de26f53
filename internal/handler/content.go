package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/brightwork/internal/apperr"
	"github.com/dukerupert/brightwork/internal/content"
	"github.com/dukerupert/brightwork/internal/store"
)

// ContentHandler serves the portfolio and blog: admin CRUD plus the
// published, rendered views for visitors.
type ContentHandler struct {
	portfolio *store.PortfolioStore
	blog      *store.BlogStore
	hub       Broadcaster
	logger    *slog.Logger
}

func NewContentHandler(ps *store.PortfolioStore, bs *store.BlogStore, hub Broadcaster, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{portfolio: ps, blog: bs, hub: hub, logger: logger}
}

// slugFor uses the given slug when present, else derives one from title.
func slugFor(slug, title string) string {
	if s := content.Slugify(slug); s != "" {
		return s
	}
	return content.Slugify(title)
}

// Public portfolio

// PublicPortfolio handles GET /api/portfolio
func (h *ContentHandler) PublicPortfolio(w http.ResponseWriter, r *http.Request) {
	items, err := h.portfolio.List(r.Context(), true)
	if err != nil {
		writeError(w, h.logger, "list portfolio", err)
		return
	}
	out := make([]content.PortfolioItem, 0, len(items))
	for i := range items {
		out = append(out, content.PortfolioSummary(&items[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// PublicPortfolioItem handles GET /api/portfolio/{slug}
func (h *ContentHandler) PublicPortfolioItem(w http.ResponseWriter, r *http.Request) {
	p, err := h.portfolio.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, h.logger, "get portfolio project", err)
		return
	}
	if p == nil || !p.Published {
		writeMessage(w, http.StatusNotFound, "project not found")
		return
	}
	item, err := content.PortfolioDetail(p)
	if err != nil {
		writeError(w, h.logger, "render portfolio project", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Public blog

// PublicPosts handles GET /api/blog
func (h *ContentHandler) PublicPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.blog.List(r.Context(), true)
	if err != nil {
		writeError(w, h.logger, "list blog posts", err)
		return
	}
	out := make([]content.Post, 0, len(posts))
	for i := range posts {
		out = append(out, content.PostSummary(&posts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// PublicPost handles GET /api/blog/{slug}
func (h *ContentHandler) PublicPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.blog.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, h.logger, "get blog post", err)
		return
	}
	if p == nil || !p.Published {
		writeMessage(w, http.StatusNotFound, "post not found")
		return
	}
	post, err := content.PostDetail(p)
	if err != nil {
		writeError(w, h.logger, "render blog post", err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Admin portfolio

type portfolioRequest struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	ProjectURL  string `json:"project_url"`
	Tags        string `json:"tags"`
	Featured    bool   `json:"featured"`
	Published   bool   `json:"published"`
	SortOrder   int    `json:"sort_order"`
}

func (req *portfolioRequest) input() (store.PortfolioInput, error) {
	req.Title = strings.TrimSpace(req.Title)
	v := apperr.NewValidation()
	if req.Title == "" {
		v.Add("title", "is required")
	}
	slug := slugFor(req.Slug, req.Title)
	if slug == "" && req.Title != "" {
		v.Add("slug", "could not be derived from title")
	}
	return store.PortfolioInput{
		Slug:        slug,
		Title:       req.Title,
		Summary:     req.Summary,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		ProjectURL:  req.ProjectURL,
		Tags:        strings.Join(content.SplitTags(req.Tags), ","),
		Featured:    req.Featured,
		Published:   req.Published,
		SortOrder:   req.SortOrder,
	}, v.OrNil()
}

// ListPortfolio handles GET /api/admin/portfolio
func (h *ContentHandler) ListPortfolio(w http.ResponseWriter, r *http.Request) {
	items, err := h.portfolio.List(r.Context(), false)
	if err != nil {
		writeError(w, h.logger, "list portfolio", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(items))
}

// CreatePortfolio handles POST /api/admin/portfolio
func (h *ContentHandler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.logger, "validate portfolio project", err)
		return
	}
	p, err := h.portfolio.Create(r.Context(), in)
	if err != nil {
		storeError(w, h.logger, "create portfolio project", err, "slug already in use")
		return
	}
	broadcast(h.hub, "portfolio", "created", p.ID)
	writeJSON(w, http.StatusCreated, p)
}

// UpdatePortfolio handles PUT /api/admin/portfolio/{id}
func (h *ContentHandler) UpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := h.portfolio.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get portfolio project", err)
		return
	}
	if existing == nil {
		writeMessage(w, http.StatusNotFound, "project not found")
		return
	}
	var req portfolioRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.logger, "validate portfolio project", err)
		return
	}
	p, err := h.portfolio.Update(r.Context(), id, in)
	if err != nil {
		storeError(w, h.logger, "update portfolio project", err, "slug already in use")
		return
	}
	broadcast(h.hub, "portfolio", "updated", p.ID)
	writeJSON(w, http.StatusOK, p)
}

// DeletePortfolio handles DELETE /api/admin/portfolio/{id}
func (h *ContentHandler) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.portfolio.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, "delete portfolio project", err)
		return
	}
	broadcast(h.hub, "portfolio", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// Admin blog

type blogRequest struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Excerpt   string `json:"excerpt"`
	Body      string `json:"body"`
	CoverURL  string `json:"cover_url"`
	Published bool   `json:"published"`
}

func (req *blogRequest) input() (store.BlogInput, error) {
	req.Title = strings.TrimSpace(req.Title)
	v := apperr.NewValidation()
	if req.Title == "" {
		v.Add("title", "is required")
	}
	slug := slugFor(req.Slug, req.Title)
	if slug == "" && req.Title != "" {
		v.Add("slug", "could not be derived from title")
	}
	if req.Published && strings.TrimSpace(req.Body) == "" {
		v.Add("body", "is required to publish")
	}
	return store.BlogInput{
		Slug:      slug,
		Title:     req.Title,
		Excerpt:   req.Excerpt,
		Body:      req.Body,
		CoverURL:  req.CoverURL,
		Published: req.Published,
	}, v.OrNil()
}

// ListPosts handles GET /api/admin/blog
func (h *ContentHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.blog.List(r.Context(), false)
	if err != nil {
		writeError(w, h.logger, "list blog posts", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(posts))
}

// GetPost handles GET /api/admin/blog/{id}, drafts included.
func (h *ContentHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.blog.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get blog post", err)
		return
	}
	if p == nil {
		writeMessage(w, http.StatusNotFound, "post not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreatePost handles POST /api/admin/blog
func (h *ContentHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req blogRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.logger, "validate blog post", err)
		return
	}
	p, err := h.blog.Create(r.Context(), in, time.Now())
	if err != nil {
		storeError(w, h.logger, "create blog post", err, "slug already in use")
		return
	}
	broadcast(h.hub, "blog", "created", p.ID)
	writeJSON(w, http.StatusCreated, p)
}

// UpdatePost handles PUT /api/admin/blog/{id}
func (h *ContentHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req blogRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.logger, "validate blog post", err)
		return
	}
	p, err := h.blog.Update(r.Context(), id, in, time.Now())
	if err != nil {
		storeError(w, h.logger, "update blog post", err, "slug already in use")
		return
	}
	if p == nil {
		writeMessage(w, http.StatusNotFound, "post not found")
		return
	}
	broadcast(h.hub, "blog", "updated", p.ID)
	writeJSON(w, http.StatusOK, p)
}

// DeletePost handles DELETE /api/admin/blog/{id}
func (h *ContentHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.blog.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, "delete blog post", err)
		return
	}
	broadcast(h.hub, "blog", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}
