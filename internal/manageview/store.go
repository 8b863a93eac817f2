package manageview

import (
	"sync"
	"time"
)

// storeEntry はビューと最終アクセス時刻の組。
type storeEntry struct {
	view       *View
	lastAccess time.Time
}

// Store はセッションIDごとのビューを管理する。
// ビューの状態はブラウザタブ間で共有されるセッションに紐づく。
// サインアウトで明示的に破棄されるほか、ViewTTLを超えて操作の
// 無いビュー（期限切れセッションの残骸）は定期的に回収される。
type Store struct {
	fetcher Fetcher
	config  Config

	mu    sync.Mutex
	views map[string]*storeEntry

	// テストからの差し替え用
	now func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore はStoreの新しいインスタンスを生成する。
// ViewTTLが正の場合は無操作ビューの回収goroutineを起動する。
func NewStore(fetcher Fetcher, config Config) *Store {
	s := &Store{
		fetcher: fetcher,
		config:  config,
		views:   make(map[string]*storeEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if config.ViewTTL > 0 {
		go s.purgeLoop(config.ViewTTL)
	}
	return s
}

// ForSession は指定セッションのビューを返す。存在しなければ作成する。
func (s *Store) ForSession(sessionID string) *View {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.views[sessionID]
	if !ok {
		entry = &storeEntry{view: NewView(s.fetcher, s.config)}
		s.views[sessionID] = entry
	}
	entry.lastAccess = s.now()
	return entry.view
}

// Evict は指定セッションのビューを破棄する。
// 明示的なサインアウトと強制サインアウトの両方から呼び出される。
func (s *Store) Evict(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, sessionID)
}

// PurgeIdle はViewTTLを超えて操作の無いビューを破棄し、件数を返す。
func (s *Store) PurgeIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.config.ViewTTL)
	purged := 0
	for sessionID, entry := range s.views {
		if entry.lastAccess.Before(cutoff) {
			delete(s.views, sessionID)
			purged++
		}
	}
	return purged
}

// Stop は回収goroutineを停止する。
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) purgeLoop(ttl time.Duration) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.PurgeIdle()
		}
	}
}
