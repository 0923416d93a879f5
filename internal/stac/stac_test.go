package stac

import (
	"encoding/json"
	"testing"
)

func TestCatalogRoundTrip(t *testing.T) {
	c := NewCatalog("cat-1", "outputs for step 2")
	c.Links = append(c.Links,
		Link{Href: "s3://bucket/job/source", Rel: RelHarmonySource},
		Link{Href: "./granule_0.json", Rel: RelItem, Type: "application/json", Title: "granule 0"},
	)

	raw, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := ParseCatalog(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if back.StacVersion != Version {
		t.Fatalf("stac_version: got %q", back.StacVersion)
	}
	if len(back.ItemLinks()) != 1 {
		t.Fatalf("item links: got %d", len(back.ItemLinks()))
	}
	if src := back.LinkByRel(RelHarmonySource); src == nil || src.Href != "s3://bucket/job/source" {
		t.Fatalf("harmony_source link: got %+v", src)
	}
	if back.LinkByRel(RelNext) != nil {
		t.Fatalf("unexpected next link")
	}
}

func TestItemParseAndAssets(t *testing.T) {
	raw := []byte(`{
		"stac_version": "1.0.0-beta.2",
		"id": "granule-1",
		"type": "Feature",
		"bbox": [-10, -10, 10, 10],
		"properties": {
			"start_datetime": "2020-01-01T00:00:00Z",
			"end_datetime": "2020-01-02T00:00:00Z"
		},
		"assets": {
			"data": {"href": "s3://b/a.tif", "type": "image/tiff", "title": "a.tif"}
		},
		"links": []
	}`)

	item, err := ParseItem(raw)
	if err != nil {
		t.Fatalf("parse item: %v", err)
	}
	asset, ok := item.DataAsset()
	if !ok {
		t.Fatalf("expected data asset")
	}
	if asset.Href != "s3://b/a.tif" || asset.Type != "image/tiff" {
		t.Fatalf("asset: got %+v", asset)
	}
	if len(item.Bbox) != 4 {
		t.Fatalf("bbox: got %v", item.Bbox)
	}
	start, end := item.Properties.Temporal()
	if start == nil || end == nil {
		t.Fatalf("temporal: got %v %v", start, end)
	}
	if !end.After(*start) {
		t.Fatalf("end should be after start")
	}
}

func TestItemTemporalAbsent(t *testing.T) {
	item := &Item{}
	start, end := item.Properties.Temporal()
	if start != nil || end != nil {
		t.Fatalf("absent datetimes should parse to nil")
	}
	item.Properties.StartDatetime = "not-a-date"
	start, _ = item.Properties.Temporal()
	if start != nil {
		t.Fatalf("bad datetime should parse to nil, got %v", start)
	}
}

func TestDataAssetFallback(t *testing.T) {
	item := &Item{Assets: map[string]Asset{"browse": {Href: "s3://b/browse.png"}}}
	asset, ok := item.DataAsset()
	if !ok || asset.Href != "s3://b/browse.png" {
		t.Fatalf("fallback asset: got %+v ok=%v", asset, ok)
	}
	empty := &Item{}
	if _, ok := empty.DataAsset(); ok {
		t.Fatalf("no assets should report !ok")
	}
}

func TestResolveHref(t *testing.T) {
	cases := []struct {
		base, href, want string
	}{
		{"s3://bucket/job/outputs/catalog.json", "./granule_0.json", "s3://bucket/job/outputs/granule_0.json"},
		{"s3://bucket/job/outputs/catalog.json", "granule_0.json", "s3://bucket/job/outputs/granule_0.json"},
		{"s3://bucket/job/outputs/catalog.json", "s3://other/item.json", "s3://other/item.json"},
		{"gs://bucket/a/b/catalog.json", "../c/item.json", "gs://bucket/a/c/item.json"},
		{"/tmp/job/outputs/catalog.json", "item.json", "/tmp/job/outputs/item.json"},
		{"s3://bucket/job/catalog.json", "", "s3://bucket/job/catalog.json"},
	}
	for _, c := range cases {
		if got := ResolveHref(c.base, c.href); got != c.want {
			t.Fatalf("ResolveHref(%q, %q) = %q, want %q", c.base, c.href, got, c.want)
		}
	}
}
