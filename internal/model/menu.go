package model

// MenuItem は上流APIが所有するメニュー記録を表す。
// 本システムは読み取り、ID指定の更新、ID指定の削除のみを行う。
type MenuItem struct {
	ID       string  `json:"_id"`
	Name     string  `json:"name"`
	Recipe   string  `json:"recipe"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
}

// MenuPage はソート・検索可能なコレクションの1ページを表す。
// 削除後もTotalCountとPageIndexの整合性を保つ必要がある。
type MenuPage struct {
	Items      []MenuItem
	TotalCount int
	PageIndex  int
	PageSize   int
}

// NewMenuItem はメニュー登録・更新リクエストのペイロードを表す。
type NewMenuItem struct {
	Name     string  `json:"name"`
	Recipe   string  `json:"recipe"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
}
