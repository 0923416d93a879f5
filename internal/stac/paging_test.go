package stac

import "testing"

func itemLinksN(n int) []Link {
	links := make([]Link, 0, n)
	for i := 0; i < n; i++ {
		links = append(links, Link{Href: PageFileName(i), Rel: RelItem})
	}
	return links
}

func TestBuildPagedCatalogsSinglePage(t *testing.T) {
	pages := BuildPagedCatalogs("agg", itemLinksN(3), 10)
	if len(pages) != 1 {
		t.Fatalf("pages: got %d", len(pages))
	}
	p := pages[0]
	if len(p.ItemLinks()) != 3 {
		t.Fatalf("item links: got %d", len(p.ItemLinks()))
	}
	if p.LinkByRel(RelPrev) != nil || p.LinkByRel(RelNext) != nil {
		t.Fatalf("single page must not be chained")
	}
	if p.StacVersion != Version {
		t.Fatalf("stac_version: got %q", p.StacVersion)
	}
}

func TestBuildPagedCatalogsChained(t *testing.T) {
	pages := BuildPagedCatalogs("agg", itemLinksN(5), 2)
	if len(pages) != 3 {
		t.Fatalf("pages: got %d", len(pages))
	}

	counts := []int{2, 2, 1}
	for i, p := range pages {
		if got := len(p.ItemLinks()); got != counts[i] {
			t.Fatalf("page %d item links: got %d want %d", i, got, counts[i])
		}
	}

	if pages[0].LinkByRel(RelPrev) != nil {
		t.Fatalf("first page has prev")
	}
	if next := pages[0].LinkByRel(RelNext); next == nil || next.Href != "catalog1.json" {
		t.Fatalf("first page next: got %+v", next)
	}
	if prev := pages[1].LinkByRel(RelPrev); prev == nil || prev.Href != "catalog0.json" {
		t.Fatalf("middle page prev: got %+v", prev)
	}
	if next := pages[1].LinkByRel(RelNext); next == nil || next.Href != "catalog2.json" {
		t.Fatalf("middle page next: got %+v", next)
	}
	if pages[2].LinkByRel(RelNext) != nil {
		t.Fatalf("last page has next")
	}

	// Item order must be preserved across pages.
	var seen []string
	for _, p := range pages {
		for _, l := range p.ItemLinks() {
			seen = append(seen, l.Href)
		}
	}
	for i, href := range seen {
		if href != PageFileName(i) {
			t.Fatalf("order broken at %d: got %s", i, href)
		}
	}
}

func TestBuildPagedCatalogsEmpty(t *testing.T) {
	pages := BuildPagedCatalogs("agg", nil, 100)
	if len(pages) != 1 {
		t.Fatalf("empty input should still produce one page, got %d", len(pages))
	}
	if len(pages[0].ItemLinks()) != 0 {
		t.Fatalf("empty page should have no item links")
	}
}
