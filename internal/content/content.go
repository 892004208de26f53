package content

import (
	"strings"
	"time"

	"github.com/dukerupert/brightwork/internal/model"
)

// Post is a published blog post as served to visitors.
type Post struct {
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Excerpt     string     `json:"excerpt"`
	CoverURL    string     `json:"cover_url,omitempty"`
	HTML        string     `json:"html,omitempty"`
	PublishedAt *time.Time `json:"published_at"`
}

// PostSummary drops the body for list pages.
func PostSummary(p *model.BlogPost) Post {
	return Post{
		Slug:        p.Slug,
		Title:       p.Title,
		Excerpt:     p.Excerpt,
		CoverURL:    p.CoverURL,
		PublishedAt: p.PublishedAt,
	}
}

// PostDetail includes the rendered body.
func PostDetail(p *model.BlogPost) (Post, error) {
	out := PostSummary(p)
	html, err := RenderMarkdown(p.Body)
	if err != nil {
		return Post{}, err
	}
	out.HTML = html
	return out, nil
}

type PortfolioItem struct {
	Slug       string   `json:"slug"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	HTML       string   `json:"html,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	ProjectURL string   `json:"project_url,omitempty"`
	Tags       []string `json:"tags"`
	Featured   bool     `json:"featured"`
}

// SplitTags turns the stored comma list into trimmed, non-empty tags.
func SplitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func PortfolioSummary(p *model.PortfolioProject) PortfolioItem {
	return PortfolioItem{
		Slug:       p.Slug,
		Title:      p.Title,
		Summary:    p.Summary,
		ImageURL:   p.ImageURL,
		ProjectURL: p.ProjectURL,
		Tags:       SplitTags(p.Tags),
		Featured:   p.Featured,
	}
}

func PortfolioDetail(p *model.PortfolioProject) (PortfolioItem, error) {
	out := PortfolioSummary(p)
	html, err := RenderMarkdown(p.Description)
	if err != nil {
		return PortfolioItem{}, err
	}
	out.HTML = html
	return out, nil
}

var slugReplacer = strings.NewReplacer("'", "", "’", "", "&", "and")

// Slugify derives a URL slug from a title: lowercase ASCII letters and
// digits separated by single hyphens.
func Slugify(title string) string {
	title = slugReplacer.Replace(strings.ToLower(title))
	var b strings.Builder
	dash := false
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}
