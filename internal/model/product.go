package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ProductID accepts both JSON numbers and strings so catalog files and
// browser clients can use either form.
type ProductID string

// UnmarshalJSON decodes a number or a string
func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id must be a string or number: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

// Product catalog entry
type Product struct {
	ID          ProductID `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Image       string    `json:"image,omitempty"`
}

// HasTag reports whether the product carries tag, ignoring case
func (p *Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Suggestion is a product attached to a chat message. Phrase is set on the
// first entry of a batch only.
type Suggestion struct {
	Product
	Phrase string `json:"phrase,omitempty"`
}

// Combo curated bundle of products
type Combo struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags"`
	Products    []ProductID `json:"products"`
}

// HasTag reports whether the combo carries tag, ignoring case
func (c *Combo) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
