package stac

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// Version is the STAC spec version written on every catalog and item the
// orchestrator produces. Worker-produced documents are accepted regardless
// of their declared version.
const Version = "1.0.0-beta.2"

const (
	RelItem          = "item"
	RelPrev          = "prev"
	RelNext          = "next"
	RelHarmonySource = "harmony_source"
)

type Link struct {
	Href  string `json:"href"`
	Rel   string `json:"rel"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

type Asset struct {
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Properties carries the temporal range of an item. Datetimes stay as the
// wire strings; Temporal parses them on demand.
type Properties struct {
	StartDatetime string `json:"start_datetime,omitempty"`
	EndDatetime   string `json:"end_datetime,omitempty"`
}

// Temporal parses the start/end datetimes. Unparseable or absent values
// yield nil without error so a sloppy worker catalog cannot fail a job.
func (p Properties) Temporal() (start, end *time.Time) {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(p.StartDatetime)); err == nil {
		start = &t
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(p.EndDatetime)); err == nil {
		end = &t
	}
	return start, end
}

type Item struct {
	StacVersion string           `json:"stac_version"`
	ID          string           `json:"id,omitempty"`
	Type        string           `json:"type"`
	Bbox        []float64        `json:"bbox,omitempty"`
	Geometry    json.RawMessage  `json:"geometry,omitempty"`
	Properties  Properties       `json:"properties"`
	Assets      map[string]Asset `json:"assets"`
	Links       []Link           `json:"links"`
}

// DataAsset returns the item's data asset, preferring the canonical "data"
// key and falling back to the first asset present.
func (i *Item) DataAsset() (Asset, bool) {
	if a, ok := i.Assets["data"]; ok {
		return a, true
	}
	for _, a := range i.Assets {
		return a, true
	}
	return Asset{}, false
}

type Catalog struct {
	StacVersion    string   `json:"stac_version"`
	StacExtensions []string `json:"stac_extensions"`
	ID             string   `json:"id"`
	Description    string   `json:"description,omitempty"`
	Links          []Link   `json:"links"`
}

func NewCatalog(id, description string) *Catalog {
	return &Catalog{
		StacVersion:    Version,
		StacExtensions: []string{},
		ID:             id,
		Description:    description,
		Links:          []Link{},
	}
}

// ItemLinks returns the catalog's item links in declaration order.
func (c *Catalog) ItemLinks() []Link {
	var out []Link
	for _, l := range c.Links {
		if l.Rel == RelItem {
			out = append(out, l)
		}
	}
	return out
}

// LinkByRel returns the first link with the given rel, or nil.
func (c *Catalog) LinkByRel(rel string) *Link {
	for i := range c.Links {
		if c.Links[i].Rel == rel {
			return &c.Links[i]
		}
	}
	return nil
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse stac catalog: %w", err)
	}
	return &c, nil
}

func ParseItem(raw []byte) (*Item, error) {
	var i Item
	if err := json.Unmarshal(raw, &i); err != nil {
		return nil, fmt.Errorf("parse stac item: %w", err)
	}
	return &i, nil
}

// ResolveHref resolves a possibly-relative link href against the URL of the
// document that contains it. Absolute hrefs (any scheme) pass through.
func ResolveHref(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return baseURL
	}
	if strings.Contains(href, "://") {
		return href
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" {
		// Base is a bare path; join directly.
		return path.Join(path.Dir(baseURL), href)
	}
	u.Path = path.Join(path.Dir(u.Path), href)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
