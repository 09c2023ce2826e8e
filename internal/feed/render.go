package feed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/prisfeed/internal/model"
	"github.com/hitoshi/prisfeed/internal/security"
)

// Renderer はフィルタ済み商品をPrisjakt XMLフィードに変換する。
// 出力はどのような入力に対しても整形式のXMLとなる。
// バリアント展開ポリシー:
//   - VariantModeExpand（デフォルト）: 全バリアントをそれぞれ独立した<item>として出力。
//     リンクにvariantクエリパラメータを付与し、SKU欠損時は「商品ID-バリアントID」で代替する。
//   - VariantModeSingle（レガシー）: 先頭バリアントのみ出力。
//     リンクは商品ページのみ、SKU欠損時は商品IDで代替する。
type Renderer struct {
	sanitizer security.DescriptionSanitizerService
	mode      model.VariantMode
}

// NewRenderer はRendererの新しいインスタンスを生成する。
func NewRenderer(sanitizer security.DescriptionSanitizerService, mode model.VariantMode) *Renderer {
	return &Renderer{
		sanitizer: sanitizer,
		mode:      mode,
	}
}

// Mode はレンダリングのバリアント展開ポリシーを返す。
func (r *Renderer) Mode() model.VariantMode {
	return r.mode
}

// InventoryItemIDs はレンダリング対象バリアントのinventory_item_idを収集する。
// 展開モードでは全バリアント、シングルモードでは先頭バリアントのみが対象。
// ゼロ値（ID欠損）は除外する。重複は保持したまま返す（在庫取得側でマップに集約される）。
func (r *Renderer) InventoryItemIDs(products []model.Product) []int64 {
	var ids []int64
	for _, p := range products {
		variants := r.targetVariants(p)
		for _, v := range variants {
			if v.InventoryItemID != 0 {
				ids = append(ids, v.InventoryItemID)
			}
		}
	}
	return ids
}

// targetVariants はレンダリング対象のバリアントを返す。
func (r *Renderer) targetVariants(p model.Product) []model.Variant {
	if r.mode == model.VariantModeSingle && len(p.Variants) > 0 {
		return p.Variants[:1]
	}
	return p.Variants
}

// Render はフィルタ済み商品と在庫レベルからXMLフィード文書を生成する。
// baseは商品リンクの構築に使用するストアフロントのベースURL（末尾スラッシュなし）。
func (r *Renderer) Render(shop, base string, products []model.Product, levels map[int64]int) string {
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<rss xmlns:pj="https://schema.prisjakt.nu/ns/1.0" xmlns:g="http://base.google.com/ns/1.0" version="3.0">` + "\n")
	b.WriteString("  <channel>\n")
	b.WriteString("    <title>" + esc(shop) + " Prisjakt Feed</title>\n")
	b.WriteString("    <description>Automatisk feed från Shopify</description>\n")
	b.WriteString("    <link>" + esc(base) + "</link>\n")

	for _, p := range products {
		for _, v := range r.targetVariants(p) {
			r.writeItem(&b, base, p, v, levels)
		}
	}

	b.WriteString("  </channel>\n")
	b.WriteString("</rss>\n")

	return b.String()
}

// writeItem は1バリアントを1つの<item>として書き出す。
// 欠損した任意フィールド（画像・ブランド・GTIN・商品タイプ）は
// 空要素ではなく要素自体を省略する。
func (r *Renderer) writeItem(b *strings.Builder, base string, p model.Product, v model.Variant, levels map[int64]int) {
	sku := v.SKU
	link := base + "/products/" + p.Handle
	if r.mode == model.VariantModeSingle {
		if sku == "" {
			sku = strconv.FormatInt(p.ID, 10)
		}
	} else {
		if sku == "" {
			sku = fmt.Sprintf("%d-%d", p.ID, v.ID)
		}
		link += "?variant=" + strconv.FormatInt(v.ID, 10)
	}

	availability := "out_of_stock"
	if levels[v.InventoryItemID] > 0 {
		availability = "in_stock"
	}

	description := p.BodyHTML
	if r.sanitizer != nil {
		description = r.sanitizer.Sanitize(description)
	}

	b.WriteString("    <item>\n")
	b.WriteString("      <g:id>" + cdata(sku) + "</g:id>\n")
	b.WriteString("      <g:title>" + cdata(p.Title) + "</g:title>\n")
	b.WriteString("      <g:description>" + cdata(description) + "</g:description>\n")
	b.WriteString("      <g:link>" + esc(link) + "</g:link>\n")
	if image := p.FirstImageURL(); image != "" {
		b.WriteString("      <g:image_link>" + esc(image) + "</g:image_link>\n")
	}
	b.WriteString("      <g:price>" + esc(validPrice(v.Price)) + " SEK</g:price>\n")
	b.WriteString("      <g:condition>new</g:condition>\n")
	b.WriteString("      <g:availability>" + availability + "</g:availability>\n")
	if p.Vendor != "" {
		b.WriteString("      <g:brand>" + cdata(p.Vendor) + "</g:brand>\n")
	}
	if v.Barcode != "" {
		b.WriteString("      <g:gtin>" + esc(v.Barcode) + "</g:gtin>\n")
	}
	b.WriteString("      <g:mpn>" + cdata(sku) + "</g:mpn>\n")
	if p.ProductType != "" {
		b.WriteString("      <g:product_type>" + cdata(p.ProductType) + "</g:product_type>\n")
	}
	b.WriteString("      <g:shipping><g:country>SE</g:country><g:price>0 SEK</g:price></g:shipping>\n")
	b.WriteString("    </item>\n")
}

// validPrice は価格文字列が10進数としてパース可能な場合はそのまま返し、
// 空または不正な場合は"0"を返す。通貨換算は行わない。
func validPrice(price string) string {
	if price == "" {
		return "0"
	}
	if _, err := decimal.NewFromString(price); err != nil {
		return "0"
	}
	return price
}

// escReplacer はXML属性相当フィールドのエンティティエスケープ。
var escReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// esc は & < > " ' をエンティティエスケープする。
func esc(s string) string {
	return escReplacer.Replace(s)
}

// cdata は自由テキストをCDATAセクションで包む。
// 本文中に"]]>"が含まれる場合はセクションを分割して整形式を保つ。
func cdata(s string) string {
	return "<![CDATA[" + strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") + "]]>"
}
