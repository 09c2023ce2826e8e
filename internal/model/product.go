// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// ProductStatus はShopify上の商品の公開状態を表す。
type ProductStatus string

const (
	// ProductStatusActive は販売中の商品状態。
	ProductStatusActive ProductStatus = "active"
	// ProductStatusDraft は下書きの商品状態。
	ProductStatusDraft ProductStatus = "draft"
	// ProductStatusArchived はアーカイブ済みの商品状態。
	ProductStatusArchived ProductStatus = "archived"
)

// Product はShopify Admin APIから取得した商品を表す。
// 上流JSONの欠損フィールドはGoのゼロ値（空文字列・nil・空スライス）として扱う。
type Product struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	BodyHTML    string        `json:"body_html"`
	Vendor      string        `json:"vendor"`
	ProductType string        `json:"product_type"`
	Tags        string        `json:"tags"` // カンマ区切りのタグ文字列
	Handle      string        `json:"handle"`
	Status      ProductStatus `json:"status"`
	PublishedAt *time.Time    `json:"published_at"`
	Images      []Image       `json:"images"`
	Variants    []Variant     `json:"variants"`
}

// Image は商品画像を表す。
// Admin APIのバージョンによってsrcまたはurlのどちらかにURLが入る。
type Image struct {
	Src string `json:"src"`
	URL string `json:"url"`
}

// Variant は商品の販売バリアント（サイズ・色などの購入単位）を表す。
type Variant struct {
	ID              int64  `json:"id"`
	SKU             string `json:"sku"`
	Price           string `json:"price"`
	Barcode         string `json:"barcode"`
	InventoryItemID int64  `json:"inventory_item_id"`
}

// FirstImageURL は商品の先頭画像のURLを返す。
// 画像がない場合、またはURLフィールドが両方空の場合は空文字列を返す。
func (p *Product) FirstImageURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	if p.Images[0].Src != "" {
		return p.Images[0].Src
	}
	return p.Images[0].URL
}

// TagList はカンマ区切りのタグ文字列を小文字化・トリム済みのスライスに分解する。
// 空要素は除外する。
func (p *Product) TagList() []string {
	if p.Tags == "" {
		return nil
	}
	parts := strings.Split(strings.ToLower(p.Tags), ",")
	tags := make([]string, 0, len(parts))
	for _, t := range parts {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// HasTag はタグリストに指定タグ（小文字・トリム済み前提）が含まれるかを返す。
func (p *Product) HasTag(tag string) bool {
	for _, t := range p.TagList() {
		if t == tag {
			return true
		}
	}
	return false
}

// FilterMode はフィードの商品選択ポリシーを表す閉じた型。
// 「特定タグ付きのみ」または「全商品」のいずれか。
// リクエスト境界でParseFilterModeにより1回だけ構築し、以降は値として受け渡す。
type FilterMode struct {
	all bool
	tag string
}

// AllProducts は全商品を対象とするFilterModeを返す。
func AllProducts() FilterMode {
	return FilterMode{all: true}
}

// TaggedWith は指定タグ付き商品のみを対象とするFilterModeを返す。
// タグは小文字化・トリムして保持する。
func TaggedWith(tag string) FilterMode {
	return FilterMode{tag: strings.TrimSpace(strings.ToLower(tag))}
}

// ParseFilterMode はクエリパラメータからFilterModeを構築する。
// リテラル"all"は全商品モード、それ以外の値はタグ名として扱う。
// 空の場合はdefaultTagを使用する。
func ParseFilterMode(param, defaultTag string) FilterMode {
	tag := strings.TrimSpace(strings.ToLower(param))
	if tag == "" {
		tag = strings.TrimSpace(strings.ToLower(defaultTag))
	}
	if tag == "all" {
		return AllProducts()
	}
	return TaggedWith(tag)
}

// IsAll は全商品モードかどうかを返す。
func (m FilterMode) IsAll() bool {
	return m.all
}

// Tag はタグモードの対象タグを返す。全商品モードの場合は空文字列。
func (m FilterMode) Tag() string {
	if m.all {
		return ""
	}
	return m.tag
}

// CacheKey はキャッシュキーの一部として使用するモード識別子を返す。
func (m FilterMode) CacheKey() string {
	if m.all {
		return "all"
	}
	return m.tag
}

// VariantMode はフィードのバリアント展開ポリシーを表す。
type VariantMode string

const (
	// VariantModeExpand は商品の全バリアントをそれぞれ独立した<item>として出力する（デフォルト）。
	VariantModeExpand VariantMode = "expand"
	// VariantModeSingle は商品の先頭バリアントのみを出力するレガシーモード。
	VariantModeSingle VariantMode = "single"
)

// ParseVariantMode は設定値からVariantModeを解析する。
// 不明な値はVariantModeExpandとして扱う。
func ParseVariantMode(s string) VariantMode {
	if VariantMode(strings.ToLower(strings.TrimSpace(s))) == VariantModeSingle {
		return VariantModeSingle
	}
	return VariantModeExpand
}
