package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupcart/internal/model"
	"groupcart/pkg/breaker"
	"groupcart/pkg/utils"
)

func jsonServer(t *testing.T, path string, handle func(body map[string]interface{}) (int, interface{})) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, path, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		status, resp := handle(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testOptions() Options {
	return Options{
		Timeout:  time.Second,
		Breakers: breaker.NewManager(breaker.Config{FailureThreshold: 2, Timeout: time.Minute}),
	}
}

func TestHTTPClassifier(t *testing.T) {
	srv, _ := jsonServer(t, "/analyze", func(body map[string]interface{}) (int, interface{}) {
		assert.Equal(t, "need a silk saree", body["message"])
		return http.StatusOK, map[string]interface{}{"categories": []string{"saree"}}
	})

	c := NewHTTPClassifier(srv.URL+"/analyze", testOptions())
	categories, err := c.Classify(context.Background(), "need a silk saree")
	require.NoError(t, err)
	assert.Equal(t, []string{"saree"}, categories)
}

func TestKeywordClassifier(t *testing.T) {
	tests := []struct {
		message string
		want    []string
	}{
		{"Looking for an ethnic look", []string{"saree", "kurta"}},
		{"new Sneakers and JEANS", []string{"pants", "shoes"}},
		{"a jhumka and a stole", []string{"jewelry", "dupatta"}},
		{"t-shirt please", []string{"top"}},
		{"hello there", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got, err := KeywordClassifier{}.Classify(context.Background(), tt.message)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type stubClassifier struct {
	categories []string
	err        error
}

func (s stubClassifier) Classify(context.Context, string) ([]string, error) {
	return s.categories, s.err
}

func TestFallbackClassifier(t *testing.T) {
	ctx := context.Background()

	got, _ := NewFallbackClassifier(stubClassifier{categories: []string{"remote"}}).Classify(ctx, "saree")
	assert.Equal(t, []string{"remote"}, got)

	got, _ = NewFallbackClassifier(stubClassifier{err: errors.New("down")}).Classify(ctx, "saree")
	assert.Equal(t, []string{"saree"}, got)

	got, _ = NewFallbackClassifier(stubClassifier{}).Classify(ctx, "saree")
	assert.Equal(t, []string{"saree"}, got)

	got, err := NewFallbackClassifier(nil).Classify(ctx, "kurta")
	require.NoError(t, err)
	assert.Equal(t, []string{"kurta"}, got)
}

func TestHTTPRanker(t *testing.T) {
	srv, _ := jsonServer(t, "/semantic_suggestions", func(body map[string]interface{}) (int, interface{}) {
		assert.Equal(t, "diwali outfit", body["query"])
		assert.Len(t, body["products"], 2)
		// numeric ids as the python ranker sends them
		return http.StatusOK, []map[string]interface{}{{"id": 2, "name": "Kurta"}, {"id": 1, "name": "Saree"}}
	})

	r := NewHTTPRanker(srv.URL+"/semantic_suggestions", testOptions())
	ranked, err := r.Rank(context.Background(), "diwali outfit", []model.Product{{ID: "1"}, {ID: "2"}})
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, model.ProductID("2"), ranked[0].ID)
}

func TestHTTPThemeDetector(t *testing.T) {
	srv, _ := jsonServer(t, "/nudge_theme", func(body map[string]interface{}) (int, interface{}) {
		if body["summary"] == "" {
			return http.StatusOK, map[string]interface{}{"theme": nil, "similarity": 0, "nudge": nil}
		}
		return http.StatusOK, map[string]interface{}{"theme": "diwali", "similarity": 0.71, "nudge": "Light it up!"}
	})

	d := NewHTTPThemeDetector(srv.URL+"/nudge_theme", testOptions())
	theme, err := d.Detect(context.Background(), "diwali lights")
	require.NoError(t, err)
	assert.Equal(t, "diwali", theme.Theme)
	assert.InDelta(t, 0.71, theme.Similarity, 1e-9)
	assert.Equal(t, "Light it up!", theme.Nudge)

	theme, err = d.Detect(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, theme.Nudge)
}

func TestCollaboratorFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("NotConfigured", func(t *testing.T) {
		_, err := NewHTTPRanker("", testOptions()).Rank(ctx, "q", nil)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("BadStatus", func(t *testing.T) {
		srv, _ := jsonServer(t, "/translate", func(map[string]interface{}) (int, interface{}) {
			return http.StatusInternalServerError, map[string]string{"error": "model crashed"}
		})
		_, err := NewHTTPTranslator(srv.URL+"/translate", testOptions()).Translate(ctx, "नमस्ते")
		assert.ErrorIs(t, err, utils.ErrExternalService)
	})

	t.Run("Timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()

		opts := testOptions()
		opts.Timeout = 20 * time.Millisecond
		_, err := NewHTTPClassifier(srv.URL, opts).Classify(ctx, "x")
		assert.ErrorIs(t, err, utils.ErrExternalService)
	})

	t.Run("BreakerOpens", func(t *testing.T) {
		srv, calls := jsonServer(t, "/nudge_theme", func(map[string]interface{}) (int, interface{}) {
			return http.StatusBadGateway, nil
		})
		d := NewHTTPThemeDetector(srv.URL+"/nudge_theme", testOptions())

		for i := 0; i < 4; i++ {
			_, err := d.Detect(ctx, "s")
			assert.Error(t, err)
		}
		assert.Equal(t, int32(2), atomic.LoadInt32(calls))

		_, err := d.Detect(ctx, "s")
		assert.True(t, breaker.IsCircuitBreakerError(err))
	})
}

type countingTranslator struct {
	calls int
	out   string
	err   error
}

func (c *countingTranslator) Translate(context.Context, string) (string, error) {
	c.calls++
	return c.out, c.err
}

func TestHTTPTranslator(t *testing.T) {
	srv, _ := jsonServer(t, "/translate", func(body map[string]interface{}) (int, interface{}) {
		assert.Equal(t, "मुझे साड़ी चाहिए", body["text"])
		return http.StatusOK, map[string]string{"translation": "I want a saree"}
	})

	out, err := NewHTTPTranslator(srv.URL+"/translate", testOptions()).Translate(context.Background(), "मुझे साड़ी चाहिए")
	require.NoError(t, err)
	assert.Equal(t, "I want a saree", out)
}

func TestCachedTranslator(t *testing.T) {
	ctx := context.Background()
	next := &countingTranslator{out: "I want a saree"}

	c, err := NewCachedTranslator(next, time.Hour, 8)
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 3; i++ {
		out, err := c.Translate(ctx, "मुझे साड़ी चाहिए")
		require.NoError(t, err)
		assert.Equal(t, "I want a saree", out)
	}
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 1, c.Len())

	t.Run("ErrorsAndEmptyAreNotCached", func(t *testing.T) {
		failing := &countingTranslator{err: errors.New("down")}
		c, err := NewCachedTranslator(failing, time.Hour, 8)
		require.NoError(t, err)
		defer c.Close()

		_, err = c.Translate(ctx, "नमस्ते")
		assert.Error(t, err)
		failing.err = nil
		_, _ = c.Translate(ctx, "नमस्ते")
		assert.Equal(t, 2, failing.calls)
		assert.Equal(t, 0, c.Len())
	})
}
