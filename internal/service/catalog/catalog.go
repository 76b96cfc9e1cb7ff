package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"groupcart/internal/model"
	"groupcart/pkg/log"
)

const (
	universalFile   = "products.json"
	universalCombos = "combos.json"
	festiveGroup    = "festive"
)

// Catalog read access to products and combos per group type
type Catalog interface {
	// Products returns the product list for a group type
	Products(groupType string) []model.Product

	// Combos returns the combo list for a group type
	Combos(groupType string) []model.Combo
}

// Store catalog loaded from json files in a directory:
// products.json, products_<group>.json, combos.json, combos_<group>.json
type Store struct {
	mu       sync.RWMutex
	products map[string][]model.Product
	combos   map[string][]model.Combo
	universe []model.Product
	allCombo []model.Combo
}

// Load reads every catalog file in dir. A missing directory yields an
// empty catalog; a malformed file is an error.
func Load(dir string) (*Store, error) {
	s := NewStore(nil, nil)

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		log.WithField("dir", dir).Warn("Catalog directory not found, starting with an empty catalog")
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		base := strings.TrimSuffix(name, ".json")
		path := filepath.Join(dir, name)

		switch {
		case name == universalFile:
			if err := readJSON(path, &s.universe); err != nil {
				return nil, err
			}
		case name == universalCombos:
			if err := readJSON(path, &s.allCombo); err != nil {
				return nil, err
			}
		case strings.HasPrefix(base, "products_"):
			var products []model.Product
			if err := readJSON(path, &products); err != nil {
				return nil, err
			}
			s.products[strings.ToLower(strings.TrimPrefix(base, "products_"))] = products
		case strings.HasPrefix(base, "combos_"):
			var combos []model.Combo
			if err := readJSON(path, &combos); err != nil {
				return nil, err
			}
			s.combos[strings.ToLower(strings.TrimPrefix(base, "combos_"))] = combos
		}
	}

	log.WithFields(log.Fields{
		"dir":            dir,
		"products":       len(s.universe),
		"combos":         len(s.allCombo),
		"product_groups": len(s.products),
		"combo_groups":   len(s.combos),
	}).Info("Catalog loaded")

	return s, nil
}

// NewStore builds a catalog from in-memory lists. Group specific lists can
// be added with SetGroup.
func NewStore(products []model.Product, combos []model.Combo) *Store {
	return &Store{
		products: make(map[string][]model.Product),
		combos:   make(map[string][]model.Combo),
		universe: products,
		allCombo: combos,
	}
}

// SetGroup registers group specific products and combos
func (s *Store) SetGroup(groupType string, products []model.Product, combos []model.Combo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(groupType)
	if products != nil {
		s.products[key] = products
	}
	if combos != nil {
		s.combos[key] = combos
	}
}

// Products returns the universal list for an empty, "custom" or "all" group
// type, the group file when present, then the festive file, then the
// universal list.
func (s *Store) Products(groupType string) []model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := strings.ToLower(groupType)
	switch key {
	case "", "custom", "all":
		return s.universe
	}
	if products, ok := s.products[key]; ok {
		return products
	}
	if products, ok := s.products[festiveGroup]; ok {
		return products
	}
	return s.universe
}

// Combos returns the group combo file when present, otherwise combos.json
func (s *Store) Combos(groupType string) []model.Combo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if combos, ok := s.combos[strings.ToLower(groupType)]; ok && groupType != "" {
		return combos
	}
	return s.allCombo
}

// FilterByGroup keeps products tagged with groupType. When fewer than min
// remain the unfiltered list is returned so filtering never shrinks a
// suggestion batch below what the full catalog could fill.
func FilterByGroup(products []model.Product, groupType string, min int) []model.Product {
	if groupType == "" || groupType == "default" {
		return products
	}

	filtered := make([]model.Product, 0, len(products))
	for i := range products {
		if products[i].HasTag(groupType) {
			filtered = append(filtered, products[i])
		}
	}
	if len(filtered) < min {
		return products
	}
	return filtered
}

// FilterCombos keeps combos tagged with groupType, or all combos when none are
func FilterCombos(combos []model.Combo, groupType string) []model.Combo {
	if groupType == "" || groupType == "default" {
		return combos
	}

	filtered := make([]model.Combo, 0, len(combos))
	for i := range combos {
		if combos[i].HasTag(groupType) {
			filtered = append(filtered, combos[i])
		}
	}
	if len(filtered) == 0 {
		return combos
	}
	return filtered
}

// MatchCombo returns the first combo with a tag contained in the lowercased
// query, or whose description contains the lowercased query
func MatchCombo(combos []model.Combo, query string) (*model.Combo, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, false
	}

	for i := range combos {
		c := &combos[i]
		for _, tag := range c.Tags {
			if tag != "" && strings.Contains(q, strings.ToLower(tag)) {
				return c, true
			}
		}
		if strings.Contains(strings.ToLower(c.Description), q) {
			return c, true
		}
	}
	return nil, false
}

// Resolve maps product ids to products, dropping unknown ids
func Resolve(ids []model.ProductID, products []model.Product) []model.Product {
	index := make(map[model.ProductID]int, len(products))
	for i := range products {
		if _, seen := index[products[i].ID]; !seen {
			index[products[i].ID] = i
		}
	}

	resolved := make([]model.Product, 0, len(ids))
	for _, id := range ids {
		if i, ok := index[id]; ok {
			resolved = append(resolved, products[i])
		}
	}
	return resolved
}

func readJSON(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
