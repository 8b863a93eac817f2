package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/keisuke/tabegoro/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, uid, email, display_name, photo_url, token_state, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, session.UID, session.Email, session.DisplayName, session.PhotoURL,
		session.TokenState, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, uid, email, display_name, photo_url, token_state, expires_at, created_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.UID, &session.Email, &session.DisplayName,
		&session.PhotoURL, &session.TokenState, &session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// UpdateProfile はセッションに表示名・写真URLを反映する。
func (r *PostgresSessionRepo) UpdateProfile(ctx context.Context, id, displayName, photoURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET display_name = $2, photo_url = $3 WHERE id = $1`,
		id, displayName, photoURL,
	)
	if err != nil {
		return fmt.Errorf("failed to update session profile: %w", err)
	}
	return nil
}

// UpdateTokenState はトークン交換状態を更新する。
func (r *PostgresSessionRepo) UpdateTokenState(ctx context.Context, id string, state model.TokenState) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET token_state = $2 WHERE id = $1`,
		id, state,
	)
	if err != nil {
		return fmt.Errorf("failed to update session token state: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
// 紐づくcredentialsはCASCADE削除される。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
