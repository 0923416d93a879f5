package stac

import (
	"fmt"

	"github.com/google/uuid"
)

// PageFileName is the object name of the Nth page of a paged catalog set.
func PageFileName(page int) string {
	return fmt.Sprintf("catalog%d.json", page)
}

// BuildPagedCatalogs splits item links into catalogs of at most pageSize
// links each. Pages are chained with prev/next links that reference sibling
// pages by file name, so the set must be uploaded to one directory.
//
// A nil or empty link set still produces one (empty) page so downstream
// consumers always have a catalog0.json to read.
func BuildPagedCatalogs(description string, itemLinks []Link, pageSize int) []*Catalog {
	if pageSize <= 0 {
		pageSize = len(itemLinks)
		if pageSize == 0 {
			pageSize = 1
		}
	}
	pageCount := (len(itemLinks) + pageSize - 1) / pageSize
	if pageCount == 0 {
		pageCount = 1
	}

	pages := make([]*Catalog, 0, pageCount)
	for p := 0; p < pageCount; p++ {
		c := NewCatalog(uuid.New().String(), description)
		if p > 0 {
			c.Links = append(c.Links, Link{Href: PageFileName(p - 1), Rel: RelPrev})
		}
		lo := p * pageSize
		hi := lo + pageSize
		if hi > len(itemLinks) {
			hi = len(itemLinks)
		}
		for _, l := range itemLinks[lo:hi] {
			l.Rel = RelItem
			c.Links = append(c.Links, l)
		}
		if p < pageCount-1 {
			c.Links = append(c.Links, Link{Href: PageFileName(p + 1), Rel: RelNext})
		}
		pages = append(pages, c)
	}
	return pages
}
