package suggestion

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"groupcart/internal/model"
	"groupcart/internal/monitor"
	"groupcart/internal/service/catalog"
	"groupcart/pkg/log"
)

// Kind identifies which rule produced a result
type Kind string

const (
	KindNone     Kind = "none"
	KindCombo    Kind = "combo"
	KindSemantic Kind = "semantic"
	KindCatalog  Kind = "catalog"
)

// Phrases and banners attached to suggestion batches
const (
	GenericPhrase  = "AI-powered suggestions just for you!"
	ComboBanner    = "Combo suggestion just for you!"
	PeriodicBanner = "Based on AI analysis of everyone's recent conversation, you might be interested in:"
	comboPhraseFmt = "Super Saving Deal! 🎉 %s: %s"
)

// DefaultComboKeywords words that signal explicit combo intent
var DefaultComboKeywords = []string{"combo", "set", "bundle", "party set", "deal"}

// Ranker semantic product ranking collaborator
type Ranker interface {
	Rank(ctx context.Context, query string, products []model.Product) ([]model.Product, error)
}

// GroupResolver maps a room to its catalog filter
type GroupResolver interface {
	GroupType(roomID string) (string, bool)
}

// Result suggestion batch. Suggestions is empty for KindNone.
type Result struct {
	Kind        Kind               `json:"kind"`
	Suggestions []model.Suggestion `json:"suggestions"`
	Combo       *model.Combo       `json:"combo,omitempty"`
	Banner      string             `json:"banner,omitempty"`
}

// IsCombo reports whether the batch is a combo deal
func (r *Result) IsCombo() bool {
	return r != nil && r.Kind == KindCombo
}

// Empty reports whether the batch carries no products
func (r *Result) Empty() bool {
	return r == nil || len(r.Suggestions) == 0
}

// Orchestrator decides what products to attach to chat activity
type Orchestrator interface {
	// Suggest applies the combo-priority rules: explicit combo intent,
	// semantic ranking, fallback combo, catalog fallback
	Suggest(ctx context.Context, roomID, trigger, window string) *Result

	// SuggestNoCombo ranks semantically or falls back to the catalog; it
	// never returns a combo
	SuggestNoCombo(ctx context.Context, roomID, window string) *Result

	// Tick advances the message counter and reports whether the periodic
	// suggestion is due
	Tick() bool
}

// Config orchestrator tuning
type Config struct {
	TopK          int
	Interval      int
	ComboKeywords []string
}

// orchestrator orchestrator implementation
type orchestrator struct {
	catalog  catalog.Catalog
	ranker   Ranker
	groups   GroupResolver
	metrics  *monitor.MetricsCollector
	topK     int
	interval uint64
	keywords []string
	counter  atomic.Uint64
}

// NewOrchestrator creates an orchestrator. ranker and metrics may be nil.
func NewOrchestrator(cfg Config, cat catalog.Catalog, ranker Ranker, groups GroupResolver, metrics *monitor.MetricsCollector) Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 3
	}
	keywords := cfg.ComboKeywords
	if len(keywords) == 0 {
		keywords = DefaultComboKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}

	return &orchestrator{
		catalog:  cat,
		ranker:   ranker,
		groups:   groups,
		metrics:  metrics,
		topK:     cfg.TopK,
		interval: uint64(cfg.Interval),
		keywords: lowered,
	}
}

// pool room catalog view
type pool struct {
	groupType string
	products  []model.Product
	filtered  []model.Product
	combos    []model.Combo
}

func (o *orchestrator) pool(roomID string) pool {
	groupType, filter := "", false
	if o.groups != nil {
		groupType, filter = o.groups.GroupType(roomID)
	}

	products := o.catalog.Products(groupType)
	p := pool{groupType: groupType, products: products, filtered: products}
	if filter {
		p.filtered = catalog.FilterByGroup(products, groupType, o.topK)
		p.combos = catalog.FilterCombos(o.catalog.Combos(groupType), groupType)
	} else {
		p.combos = o.catalog.Combos(groupType)
	}
	return p
}

func (o *orchestrator) Suggest(ctx context.Context, roomID, trigger, window string) *Result {
	p := o.pool(roomID)
	result := o.suggest(ctx, p, trigger, window)

	o.metrics.RecordSuggestion("combo", string(result.Kind))
	log.WithFields(log.Fields{
		"room_id":    roomID,
		"group_type": p.groupType,
		"kind":       result.Kind,
		"count":      len(result.Suggestions),
	}).Debug("Suggestion computed")

	return result
}

func (o *orchestrator) suggest(ctx context.Context, p pool, trigger, window string) *Result {
	if o.hasComboIntent(trigger) {
		if r := o.combo(p, trigger); r != nil {
			return r
		}
	}

	if ranked := o.rank(ctx, window, p.filtered); len(ranked) > 0 {
		return &Result{Kind: KindSemantic, Suggestions: annotate(ranked, GenericPhrase)}
	}

	if r := o.combo(p, window); r != nil {
		return r
	}

	return o.catalogFallback(p, "")
}

func (o *orchestrator) SuggestNoCombo(ctx context.Context, roomID, window string) *Result {
	p := o.pool(roomID)

	var result *Result
	if ranked := o.rank(ctx, window, p.filtered); len(ranked) > 0 {
		result = &Result{Kind: KindSemantic, Suggestions: annotate(ranked, GenericPhrase), Banner: PeriodicBanner}
	} else {
		result = o.catalogFallback(p, GenericPhrase)
		result.Banner = PeriodicBanner
	}

	o.metrics.RecordSuggestion("periodic", string(result.Kind))
	return result
}

func (o *orchestrator) Tick() bool {
	return o.counter.Add(1)%o.interval == 0
}

func (o *orchestrator) hasComboIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range o.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// combo matches query against the room combos and resolves the products
// against the unfiltered group catalog
func (o *orchestrator) combo(p pool, query string) *Result {
	c, ok := catalog.MatchCombo(p.combos, query)
	if !ok {
		return nil
	}
	products := catalog.Resolve(c.Products, p.products)
	if len(products) == 0 {
		return nil
	}

	phrase := fmt.Sprintf(comboPhraseFmt, c.Name, c.Description)
	matched := *c
	return &Result{
		Kind:        KindCombo,
		Suggestions: annotate(products, phrase),
		Combo:       &matched,
		Banner:      ComboBanner,
	}
}

// rank calls the ranker; failures are logged and treated as no result
func (o *orchestrator) rank(ctx context.Context, query string, products []model.Product) []model.Product {
	if o.ranker == nil || strings.TrimSpace(query) == "" || len(products) == 0 {
		return nil
	}

	ranked, err := o.ranker.Rank(ctx, query, products)
	if err != nil {
		log.WithFields(log.Fields{
			"error":    err.Error(),
			"products": len(products),
		}).Warn("Failed to rank products")
		return nil
	}
	if len(ranked) > o.topK {
		ranked = ranked[:o.topK]
	}
	return ranked
}

func (o *orchestrator) catalogFallback(p pool, phrase string) *Result {
	products := p.filtered
	if len(products) > o.topK {
		products = products[:o.topK]
	}
	if len(products) == 0 {
		return &Result{Kind: KindNone}
	}
	return &Result{Kind: KindCatalog, Suggestions: annotate(products, phrase)}
}

// annotate copies products into a batch with phrase on the first entry only
func annotate(products []model.Product, phrase string) []model.Suggestion {
	out := make([]model.Suggestion, len(products))
	for i := range products {
		out[i] = model.Suggestion{Product: products[i]}
	}
	if len(out) > 0 {
		out[0].Phrase = phrase
	}
	return out
}
