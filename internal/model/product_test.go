package model

import (
	"testing"
	"time"
)

func TestTagList(t *testing.T) {
	tests := []struct {
		name string
		tags string
		want []string
	}{
		{name: "カンマ区切り", tags: "Prisjakt, Sale", want: []string{"prisjakt", "sale"}},
		{name: "大文字混在", tags: "PRISJAKT", want: []string{"prisjakt"}},
		{name: "空文字列", tags: "", want: nil},
		{name: "空要素の除外", tags: "a,, ,b", want: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{Tags: tt.tags}
			got := p.TagList()
			if len(got) != len(tt.want) {
				t.Fatalf("タグ数が一致しません: got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("タグ[%d]が一致しません: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestHasTag(t *testing.T) {
	p := Product{Tags: "Prisjakt, Sale"}

	if !p.HasTag("prisjakt") {
		t.Error("prisjaktタグが検出されるべきです")
	}
	if p.HasTag("prisjacket") {
		t.Error("部分一致でタグが検出されてはいけません")
	}
	if p.HasTag("rea") {
		t.Error("存在しないタグが検出されてはいけません")
	}
}

func TestFirstImageURL(t *testing.T) {
	tests := []struct {
		name   string
		images []Image
		want   string
	}{
		{name: "srcフィールド", images: []Image{{Src: "https://cdn.example.com/a.jpg"}}, want: "https://cdn.example.com/a.jpg"},
		{name: "urlフィールドへのフォールバック", images: []Image{{URL: "https://cdn.example.com/b.jpg"}}, want: "https://cdn.example.com/b.jpg"},
		{name: "画像なし", images: nil, want: ""},
		{name: "先頭画像を優先", images: []Image{{Src: "https://cdn.example.com/1.jpg"}, {Src: "https://cdn.example.com/2.jpg"}}, want: "https://cdn.example.com/1.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{Images: tt.images}
			if got := p.FirstImageURL(); got != tt.want {
				t.Errorf("画像URLが一致しません: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseFilterMode(t *testing.T) {
	tests := []struct {
		name    string
		param   string
		wantAll bool
		wantTag string
	}{
		{name: "空はデフォルトタグ", param: "", wantAll: false, wantTag: "prisjakt"},
		{name: "allは全商品モード", param: "all", wantAll: true, wantTag: ""},
		{name: "大文字のALLも全商品モード", param: "ALL", wantAll: true, wantTag: ""},
		{name: "任意のタグ名", param: "Rea", wantAll: false, wantTag: "rea"},
		{name: "前後の空白を除去", param: "  sale  ", wantAll: false, wantTag: "sale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode := ParseFilterMode(tt.param, "prisjakt")
			if mode.IsAll() != tt.wantAll {
				t.Errorf("IsAll()が一致しません: got %v, want %v", mode.IsAll(), tt.wantAll)
			}
			if mode.Tag() != tt.wantTag {
				t.Errorf("Tag()が一致しません: got %q, want %q", mode.Tag(), tt.wantTag)
			}
		})
	}
}

func TestFilterModeCacheKey(t *testing.T) {
	if got := AllProducts().CacheKey(); got != "all" {
		t.Errorf("全商品モードのキャッシュキーが一致しません: got %q", got)
	}
	if got := TaggedWith("Prisjakt").CacheKey(); got != "prisjakt" {
		t.Errorf("タグモードのキャッシュキーが一致しません: got %q", got)
	}
}

func TestParseVariantMode(t *testing.T) {
	if got := ParseVariantMode("single"); got != VariantModeSingle {
		t.Errorf("singleの解析結果が一致しません: got %q", got)
	}
	if got := ParseVariantMode("expand"); got != VariantModeExpand {
		t.Errorf("expandの解析結果が一致しません: got %q", got)
	}
	if got := ParseVariantMode("unknown"); got != VariantModeExpand {
		t.Errorf("不明な値はexpandとして扱われるべきです: got %q", got)
	}
	if got := ParseVariantMode(""); got != VariantModeExpand {
		t.Errorf("空値はexpandとして扱われるべきです: got %q", got)
	}
}

func TestProductStatusValues(t *testing.T) {
	published := time.Now()
	p := Product{Status: ProductStatusActive, PublishedAt: &published}

	if p.Status != "active" {
		t.Errorf("activeステータスの文字列表現が一致しません: got %q", p.Status)
	}
}
