// Package feed はPrisjakt向け商品フィードの選択・レンダリング・生成を提供する。
package feed

import "github.com/hitoshi/prisfeed/internal/model"

// Select はフィードに掲載可能な商品を選択する。
// 必須条件（両モード共通）: 商品状態がactive、公開日時が設定済み、
// バリアントが1件以上存在すること。
// タグモードではさらに、カンマ区切りタグ（小文字化・トリム済み）に
// 対象タグが含まれることを要求する。
// 純粋関数であり、上流の返却順序を保持する。I/Oは行わない。
func Select(products []model.Product, mode model.FilterMode) []model.Product {
	selected := make([]model.Product, 0, len(products))

	for _, p := range products {
		if p.Status != model.ProductStatusActive {
			continue
		}
		if p.PublishedAt == nil {
			continue
		}
		if len(p.Variants) == 0 {
			continue
		}
		if !mode.IsAll() && !p.HasTag(mode.Tag()) {
			continue
		}
		selected = append(selected, p)
	}

	return selected
}
