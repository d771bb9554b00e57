package rest

import (
	"context"
	"net/http"

	"github.com/dmelo/supportdesk/internal/cache"
)

// ArticleInput is the knowledge-base article create/update body.
type ArticleInput struct {
	Title   string   `json:"title,omitempty"`
	Body    string   `json:"body,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Publish bool     `json:"publish,omitempty"`
}

// ListArticles returns all knowledge-base articles.
func (c *Client) ListArticles(ctx context.Context) ([]cache.Entity, error) {
	var articles []cache.Entity
	if err := c.get(ctx, "/kb/articles/", &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// GetArticle returns one article by id.
func (c *Client) GetArticle(ctx context.Context, id string) (cache.Entity, error) {
	var article cache.Entity
	if err := c.get(ctx, "/kb/articles/"+id, &article); err != nil {
		return nil, err
	}
	return article, nil
}

// CreateArticle creates a knowledge-base article.
func (c *Client) CreateArticle(ctx context.Context, in ArticleInput) (cache.Entity, error) {
	var article cache.Entity
	if err := c.do(ctx, http.MethodPost, "/kb/articles/", in, &article); err != nil {
		return nil, err
	}
	return article, nil
}

// ListTags returns all knowledge-base tags.
func (c *Client) ListTags(ctx context.Context) ([]cache.Entity, error) {
	var tags []cache.Entity
	if err := c.get(ctx, "/kb/tags/", &tags); err != nil {
		return nil, err
	}
	return tags, nil
}
