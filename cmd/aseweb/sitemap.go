package main

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"

	"badc0de.net/pkg/go-aseprite/pipeline"
)

type SitemapURLImage struct {
	// xml.Name would be 'http://www.google.com/schemas/sitemap-image/1.1 image'

	Loc string `xml:"image:loc"` // image is the namespace 'http://www.google.com/schemas/sitemap-image/1.1'
}

type SitemapURL struct {
	XMLName xml.Name `xml:"url"`
	Loc     string   `xml:"loc"`

	Image []SitemapURLImage `xml:"image:image,omitempty"`
}

type SitemapURLSet struct {
	XMLName    xml.Name     `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 urlset"`
	XMLNSImage string       `xml:"xmlns:image,attr"`
	URL        []SitemapURL `xml:"url,omitempty"` // up to 50k entries
}

func (e *SitemapURLSet) Write(w http.ResponseWriter, r *http.Request) {
	e.XMLNSImage = "http://www.google.com/schemas/sitemap-image/1.1"

	w.Header().Set("Content-Type", "application/xml")

	fmt.Fprintf(w, "%s", xml.Header)
	enc := xml.NewEncoder(w)
	enc.Indent("", " ")
	err := enc.Encode(e)
	if err != nil {
		http.Error(w, "<error>could not encode sitemap</error>", http.StatusInternalServerError)
		return
	}
}

// sitemapHandler lists the metadata of every built sprite, with its atlas
// and the GIF of every tag as images.
func sitemapHandler(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := &url.URL{Scheme: "http", Host: r.Host}
		if r.TLS != nil {
			base.Scheme = "https"
		}
		set := &SitemapURLSet{}
		for _, name := range p.Assets() {
			rd, ok := p.Asset(name)
			if !ok {
				continue
			}
			u := SitemapURL{Loc: base.String() + "/sprite/" + name + ".json"}
			u.Image = append(u.Image, SitemapURLImage{Loc: base.String() + "/sprite/" + name + "/atlas.png"})
			for _, tag := range rd.Tags().Names() {
				u.Image = append(u.Image, SitemapURLImage{Loc: base.String() + "/sprite/" + name + "/tag/" + url.PathEscape(tag) + ".gif"})
			}
			set.URL = append(set.URL, u)
		}
		set.Write(w, r)
	}
}
