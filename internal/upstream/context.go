// Package upstream はレストランサーバー（上流REST API）へのHTTPクライアントを提供する。
//
// クライアントは2種類あり、混同してはならない:
//   - 保護クライアント（NewSecureClient）: 資格情報ストアのトークンを全リクエストに添付し、
//     401/403応答で強制サインアウトを発火する。
//   - 公開クライアント（NewPublicClient）: インターセプターを持たない。公開エンドポイント
//     （トークン交換、公開メニュー、サインアップブートストラップ）専用。
//     公開呼び出しの401で強制サインアウトを発火するのは誤りであるため分離している。
package upstream

import "context"

// sessionIDKey はコンテキストにセッションIDを格納するための型安全なキー。
type sessionIDKey struct{}

// WithSessionID はコンテキストにセッションIDを注入する。
// セッションミドルウェアが保護リクエストごとに呼び出す。
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// SessionIDFromContext はコンテキストからセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey{}).(string)
	return id, ok && id != ""
}
