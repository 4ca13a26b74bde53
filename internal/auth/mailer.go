package auth

import (
	"context"
	"log/slog"
)

// Mailer はパスワード再設定リンクを利用者に届ける。
type Mailer interface {
	SendRecoveryLink(ctx context.Context, to, link string) error
}

// LogMailer はリンクを構造化ログに出力するMailer。
// メール配送基盤を持たない開発環境で使用する。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。loggerがnilの場合はslog.Default()を使用する。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendRecoveryLink(ctx context.Context, to, link string) error {
	m.logger.InfoContext(ctx, "password recovery link issued",
		slog.String("to", to),
		slog.String("link", link),
	)
	return nil
}

var _ Mailer = (*LogMailer)(nil)
