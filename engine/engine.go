package engine

import (
	"context"
	"sync"
	"time"

	"holefill/logger"
	"holefill/types"

	"github.com/jellydator/ttlcache/v3"
)

// Engine owns one Session per editor buffer. Sessions idle for longer than
// SessionTTL are dropped along with their state.
type Engine struct {
	client Completer
	config EngineConfig

	sessions    *ttlcache.Cache[int, *Session]
	unsubscribe func()
	stopCh      chan struct{}
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

// maxSweepInterval bounds how long an idle session outlives its TTL
const maxSweepInterval = time.Minute

// NewEngine creates an engine over a completion client
func NewEngine(client Completer, config EngineConfig) *Engine {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultConfig().SessionTTL
	}

	sessions := ttlcache.New[int, *Session](
		ttlcache.WithTTL[int, *Session](config.SessionTTL),
	)
	unsubscribe := sessions.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[int, *Session]) {
		logger.Debug("engine: dropping session for buffer %d (reason %d)", item.Key(), reason)
		item.Value().Cancel()
	})

	return &Engine{
		client:      client,
		config:      config,
		sessions:    sessions,
		unsubscribe: unsubscribe,
		stopCh:      make(chan struct{}),
	}
}

// Start runs expiry of idle sessions until Stop
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.sweepLoop(max(min(e.config.SessionTTL/2, maxSweepInterval), time.Millisecond))
	logger.Info("engine started")
}

// Stop cancels in-flight requests and stops session expiry
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		logger.Info("stopping engine...")
		close(e.stopCh)
		e.wg.Wait()
		e.sessions.DeleteAll()
		// Waits for eviction handlers to return
		e.unsubscribe()
		logger.Info("engine stopped")
	})
}

func (e *Engine) sweepLoop(interval time.Duration) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.sessions.DeleteExpired()
		}
	}
}

// Session returns the session for a buffer, creating it on first use
func (e *Engine) Session(bufferID int) *Session {
	if item := e.sessions.Get(bufferID); item != nil {
		return item.Value()
	}
	item, _ := e.sessions.GetOrSet(bufferID, NewSession(e.client, e.config))
	return item.Value()
}

// Complete runs the completion flow for a buffer
func (e *Engine) Complete(ctx context.Context, bufferID int, src Source, tc TriggerContext) ([]*types.Suggestion, bool) {
	defer logger.Trace("engine.Complete")()
	return e.Session(bufferID).Provide(ctx, src, tc)
}

// Accept records an accepted suggestion for a buffer
func (e *Engine) Accept(bufferID int, accepted string) {
	e.Session(bufferID).Accept(accepted)
}

// SessionCount returns the number of live sessions
func (e *Engine) SessionCount() int {
	return e.sessions.Len()
}
