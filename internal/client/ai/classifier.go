package ai

import (
	"context"
	"errors"
	"strings"

	"groupcart/pkg/log"
)

// Classifier maps a chat message to product categories
type Classifier interface {
	Classify(ctx context.Context, message string) ([]string, error)
}

// HTTPClassifier classifier collaborator client
type HTTPClassifier struct {
	*client
	url string
}

// NewHTTPClassifier creates a classifier client posting to url
func NewHTTPClassifier(url string, opts Options) *HTTPClassifier {
	return &HTTPClassifier{client: newClient(opts), url: url}
}

type classifyRequest struct {
	Message string `json:"message"`
}

type classifyResponse struct {
	Categories []string `json:"categories"`
}

// Classify asks the collaborator for categories
func (c *HTTPClassifier) Classify(ctx context.Context, message string) ([]string, error) {
	var resp classifyResponse
	if err := c.post(ctx, ServiceClassifier, c.url, classifyRequest{Message: message}, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

type keywordRule struct {
	category string
	words    []string
}

var keywordRules = []keywordRule{
	{"saree", []string{"saree", "traditional", "ethnic"}},
	{"kurta", []string{"kurta", "ethnic", "indian wear"}},
	{"top", []string{"top", "blouse", "shirt", "t-shirt"}},
	{"pants", []string{"pants", "trousers", "jeans", "bottoms"}},
	{"jewelry", []string{"jewelry", "jhumka", "earring", "bangle", "necklace"}},
	{"dupatta", []string{"dupatta", "scarf", "stole"}},
	{"shoes", []string{"shoes", "sneakers", "footwear"}},
}

// KeywordClassifier local substring classifier
type KeywordClassifier struct{}

// Classify returns the categories whose keywords occur in message, in table order
func (KeywordClassifier) Classify(_ context.Context, message string) ([]string, error) {
	text := strings.ToLower(message)
	categories := make([]string, 0)
	for _, rule := range keywordRules {
		for _, w := range rule.words {
			if strings.Contains(text, w) {
				categories = append(categories, rule.category)
				break
			}
		}
	}
	return categories, nil
}

// FallbackClassifier tries the remote classifier and falls back to keywords
type FallbackClassifier struct {
	Remote Classifier
	Local  Classifier
}

// NewFallbackClassifier wraps remote, which may be nil
func NewFallbackClassifier(remote Classifier) *FallbackClassifier {
	return &FallbackClassifier{Remote: remote, Local: KeywordClassifier{}}
}

// Classify never fails: a remote failure or a null answer uses the keyword table
func (c *FallbackClassifier) Classify(ctx context.Context, message string) ([]string, error) {
	if c.Remote != nil {
		categories, err := c.Remote.Classify(ctx, message)
		if err == nil && categories != nil {
			return categories, nil
		}
		if err != nil && !errors.Is(err, ErrNotConfigured) {
			log.WithError(err).Warn("Classifier failed, using keyword analysis")
		}
	}
	return c.Local.Classify(ctx, message)
}
