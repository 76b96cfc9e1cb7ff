package ai

import (
	"context"

	"groupcart/internal/model"
)

// HTTPRanker semantic ranking collaborator client
type HTTPRanker struct {
	*client
	url string
}

// NewHTTPRanker creates a ranker client posting to url
func NewHTTPRanker(url string, opts Options) *HTTPRanker {
	return &HTTPRanker{client: newClient(opts), url: url}
}

type rankRequest struct {
	Query    string          `json:"query"`
	Products []model.Product `json:"products"`
}

// Rank returns the candidate products ordered by relevance to query
func (r *HTTPRanker) Rank(ctx context.Context, query string, products []model.Product) ([]model.Product, error) {
	var ranked []model.Product
	if err := r.post(ctx, ServiceRanker, r.url, rankRequest{Query: query, Products: products}, &ranked); err != nil {
		return nil, err
	}
	return ranked, nil
}
