package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// credentialKeyName はトークンを保存する固定キー名。
const credentialKeyName = "access-token"

// PostgresCredentialRepo はPostgreSQLを使用した資格情報リポジトリ。
// セッションごとに最大1件のベアラートークンを保持する。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// Set はトークンを固定キー名で永続化する。既存の値は上書きされる。
func (r *PostgresCredentialRepo) Set(ctx context.Context, sessionID, token string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (session_id, key_name, token, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id)
		 DO UPDATE SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at`,
		sessionID, credentialKeyName, token, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Get は保存済みトークンを返す。未保存の場合は空文字列を返す（エラーではない）。
func (r *PostgresCredentialRepo) Get(ctx context.Context, sessionID string) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		`SELECT token FROM credentials WHERE session_id = $1 AND key_name = $2`,
		sessionID, credentialKeyName,
	).Scan(&token)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}

	return token, nil
}

// Clear は保存済みトークンを削除する。未保存でもエラーにしない。
func (r *PostgresCredentialRepo) Clear(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
