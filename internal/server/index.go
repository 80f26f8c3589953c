package server

import (
	"bytes"
	_ "embed"
	"html/template"

	"github.com/NotFounds/mvtcurl/internal/config"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
)

//go:embed index.html.tpl
var indexTemplate string

var indexTmpl = template.Must(template.New("index").Parse(indexTemplate))

type indexData struct {
	Sources   []config.Source
	Locations []string
}

// renderIndex builds the minified landing page listing the sources.
func renderIndex(cfg *config.Config) ([]byte, error) {
	var buf bytes.Buffer
	err := indexTmpl.Execute(&buf, indexData{
		Sources:   cfg.Sources,
		Locations: cfg.GeoLocations().Names(),
	})
	if err != nil {
		return nil, err
	}

	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	return m.Bytes("text/html", buf.Bytes())
}
