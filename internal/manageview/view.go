// Package manageview はメニュー管理画面のページネーション付き
// コレクション状態をセッション単位で保持する。
// 削除はサーバー確定後に即時反映し、遅延再取得でサーバー状態と照合する。
package manageview

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/keisuke/tabegoro/internal/model"
)

// DefaultPageSize は1ページあたりの既定の項目数。
const DefaultPageSize = 10

// Fetcher はビューが必要とする上流操作のインターフェース。
// セキュアクライアントが実装する。
type Fetcher interface {
	FetchMenuPage(ctx context.Context, page, size int) (*model.MenuPage, error)
	DeleteMenuItem(ctx context.Context, id string) (int, error)
}

// Config はビューの動作パラメータ。
type Config struct {
	SearchDebounce time.Duration // 検索入力の確定待ち時間
	ReconcileDelay time.Duration // 削除確定後の照合再取得までの遅延
	ViewTTL        time.Duration // 無操作ビューを回収するまでの時間。0なら回収しない
}

// Snapshot はビュー状態の読み取り専用コピー。
type Snapshot struct {
	Items      []model.MenuItem
	TotalCount int
	PageIndex  int
	PageSize   int
	Filter     string
	Loading    bool
}

// View は1セッション分のメニュー管理ビュー。
// すべての状態遷移はリクエストシーケンス番号で直列化され、
// 古い取得結果が新しい状態を上書きすることはない。
type View struct {
	fetcher Fetcher
	config  Config

	mu         sync.Mutex
	items      []model.MenuItem
	totalCount int
	pageIndex  int
	pageSize   int
	filter     string
	loading    bool

	// seq は取得要求ごとに増加する。応答は発行時のseqが現在値と
	// 一致する場合のみ状態へ反映される。
	seq uint64

	searchTimer *time.Timer
}

// NewView はViewの新しいインスタンスを生成する。
func NewView(fetcher Fetcher, config Config) *View {
	return &View{
		fetcher:  fetcher,
		config:   config,
		pageSize: DefaultPageSize,
	}
}

// Snapshot は現在のビュー状態のコピーを返す。
// フィルタが設定されている場合は表示中ページの項目を
// 名前またはカテゴリで絞り込む（大文字小文字を区別しない部分一致）。
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	items := v.items
	if v.filter != "" {
		needle := strings.ToLower(v.filter)
		filtered := make([]model.MenuItem, 0, len(items))
		for _, item := range items {
			if strings.Contains(strings.ToLower(item.Name), needle) ||
				strings.Contains(strings.ToLower(item.Category), needle) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	cp := make([]model.MenuItem, len(items))
	copy(cp, items)
	return Snapshot{
		Items:      cp,
		TotalCount: v.totalCount,
		PageIndex:  v.pageIndex,
		PageSize:   v.pageSize,
		Filter:     v.filter,
		Loading:    v.loading,
	}
}

// Load は現在のページを取得して状態へ反映する。
// 取得に失敗した場合は既存の項目を保持したままエラーを返す。
func (v *View) Load(ctx context.Context) error {
	v.mu.Lock()
	page, size := v.pageIndex, v.pageSize
	v.seq++
	seq := v.seq
	v.loading = true
	v.mu.Unlock()

	result, err := v.fetcher.FetchMenuPage(ctx, page, size)

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.seq {
		// より新しい要求が発行済み。この応答は破棄する。
		return nil
	}
	v.loading = false
	if err != nil {
		// 失敗時は表示中の項目を消さない
		return err
	}
	v.items = result.Items
	v.totalCount = result.TotalCount
	return nil
}

// SetPage は表示ページを変更して再取得する。
func (v *View) SetPage(ctx context.Context, page int) error {
	if page < 0 {
		page = 0
	}
	v.mu.Lock()
	v.pageIndex = page
	v.mu.Unlock()
	return v.Load(ctx)
}

// SetPageSize は1ページあたりの項目数を変更する。
// 表示位置の整合が取れなくなるため、先頭ページに戻して再取得する。
func (v *View) SetPageSize(ctx context.Context, size int) error {
	if size < 1 {
		size = DefaultPageSize
	}
	v.mu.Lock()
	v.pageSize = size
	v.pageIndex = 0
	v.mu.Unlock()
	return v.Load(ctx)
}

// Search は検索フィルタを設定する。連続入力に追従しないよう
// SearchDebounceの間入力が止まるまで反映を遅らせる。
func (v *View) Search(query string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.searchTimer != nil {
		v.searchTimer.Stop()
	}
	if v.config.SearchDebounce <= 0 {
		v.filter = query
		return
	}
	v.searchTimer = time.AfterFunc(v.config.SearchDebounce, func() {
		v.mu.Lock()
		v.filter = query
		v.mu.Unlock()
	})
}

// Delete は項目を削除する。
//  1. 上流に削除を依頼する。失敗した場合は表示状態には一切触れず、
//     エラーをそのまま返す（自動リトライもしない）。
//  2. 成功した場合は表示中の項目から即座に取り除き、総数を減らす。
//  3. 削除でページが空になり先頭ページでない場合は、1つ前のページへ
//     移動して即座に再取得する。
//  4. それ以外の成功はReconcileDelay後に再取得し、並行する他の変更と照合する。
//     照合取得もシーケンス番号の対象なので、間に新しい操作があれば破棄される。
func (v *View) Delete(ctx context.Context, id string) error {
	count, err := v.fetcher.DeleteMenuItem(ctx, id)
	if err != nil {
		slog.Warn("メニュー項目の削除に失敗しました",
			slog.String("item_id", id),
			slog.String("error", err.Error()),
		)
		return err
	}
	if count == 0 {
		// 上流では既に消えていた。照合を待たず即座に揃える。
		return v.Load(ctx)
	}

	v.mu.Lock()
	removed := false
	kept := make([]model.MenuItem, 0, len(v.items))
	for _, item := range v.items {
		if item.ID == id && !removed {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if removed {
		v.items = kept
		if v.totalCount > 0 {
			v.totalCount--
		}
	}
	// ページが空になった場合は前のページへ戻る
	if removed && len(v.items) == 0 && v.pageIndex > 0 {
		v.pageIndex--
		v.mu.Unlock()
		return v.Load(ctx)
	}
	v.mu.Unlock()

	delay := v.config.ReconcileDelay
	if delay <= 0 {
		return v.Load(ctx)
	}
	time.AfterFunc(delay, func() {
		if err := v.Load(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("削除後の照合再取得に失敗しました",
				slog.String("item_id", id),
				slog.String("error", err.Error()),
			)
		}
	})
	return nil
}
