// Package appstate はクライアント1つ分のアプリケーション状態（現在のユーザーと認証フラグ）を保持する。
// 状態の変更は定義された操作を通してのみ行う。
package appstate

import (
	"sync"

	"github.com/hitoshi/jobboard/internal/model"
)

// Snapshot はある時点の状態のコピー。
type Snapshot struct {
	User            *model.UserRecord `json:"user"`
	IsAuthenticated bool              `json:"isAuthenticated"`
	Loading         bool              `json:"loading"`
}

// Role は認証済みユーザーのロールを返す。未認証の場合は空文字列。
func (s Snapshot) Role() model.Role {
	if !s.IsAuthenticated || s.User == nil {
		return ""
	}
	return s.User.Role
}

// Store はスレッドセーフな状態コンテナ。
type Store struct {
	mu       sync.RWMutex
	state    Snapshot
	watchers map[int]chan Snapshot
	nextID   int
}

// New は未認証状態のStoreを生成する。
func New() *Store {
	return &Store{watchers: make(map[int]chan Snapshot)}
}

// Snapshot は現在の状態を返す。
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.state)
}

// Publish はユーザーを設定し、認証済みにする。
func (s *Store) Publish(user model.UserRecord) {
	s.update(func(st *Snapshot) {
		u := user
		st.User = &u
		st.IsAuthenticated = true
	})
}

// Clear はユーザーを消去し、未認証にする。
func (s *Store) Clear() {
	s.update(func(st *Snapshot) {
		st.User = nil
		st.IsAuthenticated = false
	})
}

// SetLoading は処理中フラグを設定する。
func (s *Store) SetLoading(loading bool) {
	s.update(func(st *Snapshot) {
		st.Loading = loading
	})
}

// SetRole は認証済みユーザーのロールを差し替える。未認証の場合は何もしない。
func (s *Store) SetRole(role model.Role) {
	if !role.Valid() {
		return
	}
	s.update(func(st *Snapshot) {
		if st.User == nil {
			return
		}
		u := *st.User
		u.Role = role
		st.User = &u
	})
}

// SetName は認証済みユーザーの表示名を差し替える。未認証または空の名前の場合は何もしない。
func (s *Store) SetName(name string) {
	if name == "" {
		return
	}
	s.update(func(st *Snapshot) {
		if st.User == nil {
			return
		}
		u := *st.User
		u.Name = name
		st.User = &u
	})
}

// Watch は状態変化の購読を開始する。チャネルには購読開始時点の状態が最初に届く。
// 受信が遅れた場合は最新の状態のみが残る。
func (s *Store) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	ch <- copySnapshot(s.state)
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	snap := copySnapshot(s.state)
	for _, ch := range s.watchers {
		// 未受信の古い状態を捨てて最新に置き換える
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func copySnapshot(st Snapshot) Snapshot {
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}
