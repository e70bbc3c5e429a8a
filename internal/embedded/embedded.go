package embedded

import (
	_ "embed"
	"fmt"
	"io"
	"text/template"
)

//go:embed sitemap.config.js.tmpl
var sitemapConfig string

var sitemapTemplate = template.Must(template.New("sitemap").Parse(sitemapConfig))

// RenderSitemapConfig writes the sitemap configuration module with the given
// JSON object literal as its export.
func RenderSitemapConfig(w io.Writer, config string) error {
	if err := sitemapTemplate.Execute(w, config); err != nil {
		return fmt.Errorf("failed to render sitemap config: %w", err)
	}
	return nil
}
