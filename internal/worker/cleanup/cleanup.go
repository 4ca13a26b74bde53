// Package cleanup は期限切れの認証データを削除するジョブを提供する。
// 有効期限を猶予時間以上過ぎたセッションとパスワード再設定トークンを
// 定期バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// target は削除対象のテーブルと期限カラム。
type target struct {
	table  string
	column string
}

var targets = []target{
	{table: "sessions", column: "expires_at"},
	{table: "recovery_tokens", column: "expires_at"},
}

// CleanupJob は期限切れセッションと再設定トークンの削除ジョブ。
// 冪等な削除処理を保証する。
type CleanupJob struct {
	db         Executor
	logger     *slog.Logger
	GraceHours int // 有効期限後も保持する時間（デフォルト: 24）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		db:         db,
		logger:     logger,
		GraceHours: 24,
	}
}

// Run は期限切れの行を対象テーブルごとに削除する。
// 1つのテーブルで失敗した時点で中断し、エラーを返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	interval := fmt.Sprintf("%d hours", j.GraceHours)

	for _, t := range targets {
		start := time.Now()

		query := fmt.Sprintf(`DELETE FROM %s WHERE %s < now() - $1::interval`, t.table, t.column)
		result, err := j.db.ExecContext(ctx, query, interval)
		if err != nil {
			j.logger.Error("期限切れデータの削除に失敗しました",
				slog.String("table", t.table),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%sのクリーンアップに失敗: %w", t.table, err)
		}

		deletedCount, err := result.RowsAffected()
		if err != nil {
			j.logger.Error("削除件数の取得に失敗しました",
				slog.String("table", t.table),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("削除件数の取得に失敗: %w", err)
		}

		j.logger.Info("期限切れデータを削除しました",
			slog.String("table", t.table),
			slog.Int64("deleted_count", deletedCount),
			slog.Int("grace_hours", j.GraceHours),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}

	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
