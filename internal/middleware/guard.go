package middleware

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/keisuke/tabegoro/internal/model"
	"github.com/keisuke/tabegoro/internal/role"
)

// SignInPath はサインイン画面のパス。ガードのリダイレクト先。
const SignInPath = "/signin"

// settlingRetryAfterSec はトークン交換待ちの503応答に付けるRetry-Afterの秒数。
const settlingRetryAfterSec = 1

// RequireSignIn はサインイン済みセッションを要求するガードを返す。
//   - セッションが無い、またはトークン交換がフェイルクローズした場合は拒否し、
//     元のパスを from パラメータに載せてサインインへ誘導する。
//   - トークン交換が未確定（pending）の間は結論を出さず、
//     503 + Retry-After で再試行を促す。確定前にサインイン画面へ
//     飛ばすと、正当なセッションが読み込み中に弾かれてしまう。
func RequireSignIn() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if session == nil || session.TokenState == model.TokenStateFailed {
				rejectUnauthenticated(w, r)
				return
			}
			if !session.TokenState.Settled() {
				writeSettling(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin は管理者権限を要求するガードを返す。
// RequireSignIn の後に配置すること。権限はリゾルバで三値解決し、
// 未解決の間は拒否ではなく503で保留する。
func RequireAdmin(resolver *role.Resolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			state := resolver.Resolve(r.Context(), session)
			if !state.Known {
				writeSettling(w)
				return
			}
			if !state.Admin {
				rejectForbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rejectUnauthenticated は未認証リクエストを拒否する。
// ブラウザナビゲーションは302でサインインへ、XHRは401 JSONで応答する。
// どちらの場合も元のパスを from に載せ、サインイン後に戻れるようにする。
func rejectUnauthenticated(w http.ResponseWriter, r *http.Request) {
	target := signInRedirectURL(r)
	if wantsHTML(r) {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
}

// rejectForbidden は権限不足リクエストを拒否する。
// ブラウザナビゲーションはサインインへ誘導し、XHRは403 JSONで応答する。
func rejectForbidden(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		http.Redirect(w, r, signInRedirectURL(r), http.StatusFound)
		return
	}
	WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenAPIError())
}

// writeSettling はトークン交換待ちの保留応答を書き込む。
func writeSettling(w http.ResponseWriter) {
	w.Header().Set("Retry-After", strconv.Itoa(settlingRetryAfterSec))
	WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewSessionSettlingAPIError())
}

// signInRedirectURL は元のリクエストパスをfromパラメータに載せた
// サインインURLを組み立てる。
func signInRedirectURL(r *http.Request) string {
	from := r.URL.Path
	if r.URL.RawQuery != "" {
		from += "?" + r.URL.RawQuery
	}
	return SignInPath + "?from=" + url.QueryEscape(from)
}

// wantsHTML はリクエストがブラウザナビゲーションかどうかを判定する。
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
