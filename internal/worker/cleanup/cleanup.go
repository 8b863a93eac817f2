// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// 有効期限を超過したセッション行を日次バッチで削除する。
// 資格情報はCASCADE削除で自動的に処理される。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションの削除を抽象化するインターフェース。
// repository.SessionRepository が実装する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Observer は削除件数の観測フック。メトリクス収集用。
type Observer interface {
	RecordSessionsCleaned(count int64)
}

// CleanupJob は期限切れセッションの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	purger   SessionPurger
	logger   *slog.Logger
	observer Observer
}

// NewCleanupJob は新しいCleanupJobを生成する。observerはnilでもよい。
func NewCleanupJob(purger SessionPurger, logger *slog.Logger, observer Observer) *CleanupJob {
	return &CleanupJob{
		purger:   purger,
		logger:   logger,
		observer: observer,
	}
}

// Run は期限切れのセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.purger.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	if j.observer != nil {
		j.observer.RecordSessionsCleaned(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
