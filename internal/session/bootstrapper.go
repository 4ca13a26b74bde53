// Package session はクライアントごとの認証状態の立ち上げと追従、
// UI層に公開する認証操作、およびクライアントワークスペースの管理を提供する。
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hitoshi/jobboard/internal/appstate"
	"github.com/hitoshi/jobboard/internal/backend"
	"github.com/hitoshi/jobboard/internal/model"
)

// State はBootstrapperの状態。
type State string

const (
	StateUninitialized   State = "uninitialized"
	StateResolving       State = "resolving"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// ErrAlreadyStarted はStartが2回以上呼ばれたことを示す。
var ErrAlreadyStarted = errors.New("session: bootstrapper already started")

// SessionSource はBootstrapperが購読するセッションハンドル。
type SessionSource interface {
	GetCurrentSession(ctx context.Context) (*model.AuthSession, error)
	Subscribe() (<-chan backend.AuthEvent, backend.Unsubscribe)
}

// ProfileResolver はIdentityからUserRecordを導出する。失敗は返さない。
type ProfileResolver interface {
	Resolve(ctx context.Context, identity model.Identity) model.UserRecord
}

// Bootstrapper は起動時と認証状態変化時にプロフィールを解決し、結果をStoreに反映する。
//
// 各トリガーは世代番号を取得し、完了時点で世代が最新でない解決結果は破棄される。
// これにより古い解決が新しい状態を上書きすることはない。
type Bootstrapper struct {
	source   SessionSource
	resolver ProfileResolver
	store    *appstate.Store

	mu    sync.Mutex
	state State
	gen   uint64

	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	settleCh chan chan struct{}
	inflight sync.WaitGroup
}

// NewBootstrapper はBootstrapperを生成する。
func NewBootstrapper(source SessionSource, resolver ProfileResolver, store *appstate.Store) *Bootstrapper {
	return &Bootstrapper{
		source:   source,
		resolver: resolver,
		store:    store,
		state:    StateUninitialized,
		settleCh: make(chan chan struct{}),
	}
}

// State は現在の状態を返す。
func (b *Bootstrapper) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start はイベントを購読してから現在のセッションを確認し、初期状態を確定させる。
// 初期解決の完了後に戻り、以降のイベントはctxが終了するかStopが呼ばれるまで処理する。
func (b *Bootstrapper) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		cancel()
		return ErrAlreadyStarted
	}
	b.started = true
	b.cancel = cancel
	b.done = make(chan struct{})
	b.mu.Unlock()

	// 確認中に発生したイベントを取りこぼさないよう、先に購読する
	events, unsubscribe := b.source.Subscribe()

	b.bootstrap(ctx)

	go b.loop(ctx, events, unsubscribe)
	return nil
}

// Stop はイベント処理を停止し、実行中の解決の完了を待つ。
func (b *Bootstrapper) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Settle はSettle呼び出し以前に発行されたイベントがすべて処理され、
// 実行中の解決が完了するまで待つ。
func (b *Bootstrapper) Settle(ctx context.Context) error {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done == nil {
		return nil
	}

	ack := make(chan struct{})
	select {
	case b.settleCh <- ack:
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bootstrapper) bootstrap(ctx context.Context) {
	gen := b.advance(StateResolving)

	session, err := b.source.GetCurrentSession(ctx)
	if err != nil {
		slog.Warn("failed to query current session", slog.String("error", err.Error()))
	}
	if session == nil {
		b.commit(gen, func() {
			b.store.Clear()
			b.state = StateUnauthenticated
		})
		return
	}

	b.resolve(ctx, gen, session.Identity)
}

func (b *Bootstrapper) loop(ctx context.Context, events <-chan backend.AuthEvent, unsubscribe backend.Unsubscribe) {
	defer close(b.done)
	defer b.inflight.Wait()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.handle(ctx, ev)
		case ack := <-b.settleCh:
			b.drain(ctx, events)
			b.inflight.Wait()
			close(ack)
		}
	}
}

// drain はバッファ済みのイベントをすべて処理する。
func (b *Bootstrapper) drain(ctx context.Context, events <-chan backend.AuthEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.handle(ctx, ev)
		default:
			return
		}
	}
}

func (b *Bootstrapper) handle(ctx context.Context, ev backend.AuthEvent) {
	switch ev.Type {
	case backend.EventSignedIn:
		if ev.Session == nil {
			return
		}
		gen := b.advance(StateResolving)
		identity := ev.Session.Identity
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			b.resolve(ctx, gen, identity)
		}()

	case backend.EventSignedOut:
		b.mu.Lock()
		b.gen++
		b.state = StateUnauthenticated
		b.store.Clear()
		b.mu.Unlock()
	}
}

func (b *Bootstrapper) resolve(ctx context.Context, gen uint64, identity model.Identity) {
	rec := b.resolver.Resolve(ctx, identity)
	b.commit(gen, func() {
		b.store.Publish(rec)
		b.state = StateAuthenticated
	})
}

// advance は世代を進めて状態を設定し、新しい世代番号を返す。
func (b *Bootstrapper) advance(state State) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen++
	b.state = state
	return b.gen
}

// commit は世代が最新の場合に限りfnを適用する。
func (b *Bootstrapper) commit(gen uint64, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		slog.Debug("discarding stale session resolution", slog.Uint64("generation", gen))
		return
	}
	fn()
}
