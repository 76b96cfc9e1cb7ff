package ai

import (
	"context"

	"groupcart/internal/service/nudge"
)

// HTTPThemeDetector nudge theme collaborator client
type HTTPThemeDetector struct {
	*client
	url string
}

// NewHTTPThemeDetector creates a theme detector client posting to url
func NewHTTPThemeDetector(url string, opts Options) *HTTPThemeDetector {
	return &HTTPThemeDetector{client: newClient(opts), url: url}
}

type themeRequest struct {
	Summary string `json:"summary"`
}

// Detect returns the theme verdict; a null theme or nudge decodes as ""
func (d *HTTPThemeDetector) Detect(ctx context.Context, summary string) (*nudge.Theme, error) {
	var theme nudge.Theme
	if err := d.post(ctx, ServiceTheme, d.url, themeRequest{Summary: summary}, &theme); err != nil {
		return nil, err
	}
	return &theme, nil
}
