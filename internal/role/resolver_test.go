package role

import (
	"context"
	"errors"
	"testing"

	"github.com/keisuke/tabegoro/internal/model"
)

type mockChecker struct {
	checkAdminFn func(ctx context.Context, email string) (bool, error)
	calls        int
}

func (m *mockChecker) CheckAdmin(ctx context.Context, email string) (bool, error) {
	m.calls++
	return m.checkAdminFn(ctx, email)
}

var _ AdminChecker = (*mockChecker)(nil)

func settledSession(email string) *model.Session {
	return &model.Session{ID: "sess-1", Email: email, TokenState: model.TokenStateIssued}
}

// TestResolver_SuppressesUnsettledQueries はトークン未確定・メール無し・
// セッション無しのケースで問い合わせが抑制されることを検証する。
func TestResolver_SuppressesUnsettledQueries(t *testing.T) {
	tests := []struct {
		name string
		sess *model.Session
	}{
		{name: "セッション無し", sess: nil},
		{name: "メールアドレス無し", sess: &model.Session{ID: "s", TokenState: model.TokenStateIssued}},
		{name: "トークン交換未完了", sess: &model.Session{ID: "s", Email: "a@example.com", TokenState: model.TokenStatePending}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &mockChecker{
				checkAdminFn: func(_ context.Context, _ string) (bool, error) {
					return true, nil
				},
			}
			r := NewResolver(checker)

			state := r.Resolve(context.Background(), tt.sess)

			if state.Known {
				t.Errorf("state = %+v, want unresolved", state)
			}
			if checker.calls != 0 {
				t.Errorf("checker calls = %d, want 0 (query must be suppressed)", checker.calls)
			}
		})
	}
}

// TestResolver_ResolvesSettledSession は確定済みセッションで権限が解決されることを検証する。
func TestResolver_ResolvesSettledSession(t *testing.T) {
	tests := []struct {
		name  string
		admin bool
	}{
		{name: "管理者", admin: true},
		{name: "一般ユーザー", admin: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &mockChecker{
				checkAdminFn: func(_ context.Context, _ string) (bool, error) {
					return tt.admin, nil
				},
			}
			r := NewResolver(checker)

			state := r.Resolve(context.Background(), settledSession("taro@example.com"))

			if !state.Known || state.Admin != tt.admin {
				t.Errorf("state = %+v, want Resolved(%v)", state, tt.admin)
			}
		})
	}
}

// TestResolver_FailedStateResolvesWithoutQuery はフェイルクローズした
// セッション（failed）でも確定扱いで解決されることを検証する。
func TestResolver_FailedStateResolvesWithoutQuery(t *testing.T) {
	checker := &mockChecker{
		checkAdminFn: func(_ context.Context, _ string) (bool, error) {
			return false, nil
		},
	}
	r := NewResolver(checker)
	sess := &model.Session{ID: "s", Email: "a@example.com", TokenState: model.TokenStateFailed}

	state := r.Resolve(context.Background(), sess)

	if !state.Known {
		t.Errorf("state = %+v, failed state is settled and must resolve", state)
	}
}

// TestResolver_CachesSuccessfulResults は成功した結果がキャッシュされ
// 再解決で問い合わせが発生しないことを検証する。
func TestResolver_CachesSuccessfulResults(t *testing.T) {
	checker := &mockChecker{
		checkAdminFn: func(_ context.Context, _ string) (bool, error) {
			return true, nil
		},
	}
	r := NewResolver(checker)
	sess := settledSession("taro@example.com")

	r.Resolve(context.Background(), sess)
	state := r.Resolve(context.Background(), sess)

	if checker.calls != 1 {
		t.Errorf("checker calls = %d, want 1 (second resolve must hit cache)", checker.calls)
	}
	if !state.Known || !state.Admin {
		t.Errorf("state = %+v, want Resolved(true)", state)
	}
}

// TestResolver_ErrorFailsClosedUncached は問い合わせ失敗が非管理者として
// 扱われ、かつキャッシュされないことを検証する。
func TestResolver_ErrorFailsClosedUncached(t *testing.T) {
	failing := true
	checker := &mockChecker{}
	checker.checkAdminFn = func(_ context.Context, _ string) (bool, error) {
		if failing {
			return false, errors.New("upstream unavailable")
		}
		return true, nil
	}
	r := NewResolver(checker)
	sess := settledSession("taro@example.com")

	state := r.Resolve(context.Background(), sess)
	if !state.Known || state.Admin {
		t.Errorf("state = %+v, want Resolved(false) on error", state)
	}

	// 復旧後の再解決はキャッシュではなく再問い合わせで成功する
	failing = false
	state = r.Resolve(context.Background(), sess)
	if !state.Known || !state.Admin {
		t.Errorf("state = %+v, want Resolved(true) after recovery", state)
	}
	if checker.calls != 2 {
		t.Errorf("checker calls = %d, want 2", checker.calls)
	}
}

// TestResolver_Invalidate はキャッシュ破棄後に再問い合わせが発生することを検証する。
func TestResolver_Invalidate(t *testing.T) {
	checker := &mockChecker{
		checkAdminFn: func(_ context.Context, _ string) (bool, error) {
			return true, nil
		},
	}
	r := NewResolver(checker)
	sess := settledSession("taro@example.com")

	r.Resolve(context.Background(), sess)
	r.Invalidate("taro@example.com")
	r.Resolve(context.Background(), sess)

	if checker.calls != 2 {
		t.Errorf("checker calls = %d, want 2 after invalidation", checker.calls)
	}
}
