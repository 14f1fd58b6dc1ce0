package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/portal-dashboard/internal/config"
	"github.com/and161185/portal-dashboard/internal/push"
	"github.com/and161185/portal-dashboard/internal/render"
	"github.com/and161185/portal-dashboard/model"
	"github.com/and161185/portal-dashboard/storage/inmemory"
)

var errUnavailable = errors.New("connection refused")

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, call int) (model.MetricSnapshot, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context) (model.MetricSnapshot, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, call)
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) set(fn func(ctx context.Context, call int) (model.MetricSnapshot, error)) {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
}

func returning(s model.MetricSnapshot) *fakeFetcher {
	return &fakeFetcher{fn: func(context.Context, int) (model.MetricSnapshot, error) { return s, nil }}
}

type fakeStream struct {
	msgs   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{msgs: make(chan []byte, 16), closed: make(chan struct{})}
}

func (s *fakeStream) Next() ([]byte, error) {
	select {
	case m, ok := <-s.msgs:
		if !ok {
			return nil, push.ErrStreamClosed
		}
		return m, nil
	case <-s.closed:
		return nil, push.ErrStreamClosed
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) send(msg string) { s.msgs <- []byte(msg) }

type fakeDialer struct {
	mu    sync.Mutex
	dials int
	fn    func(ctx context.Context, dial int) (push.Stream, error)
}

func (d *fakeDialer) Dial(ctx context.Context) (push.Stream, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.mu.Unlock()
	return d.fn(ctx, n)
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func failingDialer() *fakeDialer {
	return &fakeDialer{fn: func(context.Context, int) (push.Stream, error) { return nil, errUnavailable }}
}

// streamDialer hands out the given streams in order, then fails.
func streamDialer(streams ...*fakeStream) *fakeDialer {
	return &fakeDialer{fn: func(_ context.Context, n int) (push.Stream, error) {
		if n > len(streams) {
			return nil, errUnavailable
		}
		return streams[n-1], nil
	}}
}

func testConfig(pushEnabled bool) *config.AgentConfig {
	cfg := config.DefaultAgentConfig()
	cfg.PushEnabled = pushEnabled
	cfg.PollInterval = time.Hour
	cfg.MaxPollInterval = 4 * time.Hour
	cfg.ReconnectDelay = time.Millisecond
	cfg.FlashDuration = 50 * time.Millisecond
	return cfg
}

type fixture struct {
	syncer *Syncer
	board  *render.Board
	store  *inmemory.MemStorage
}

func newFixture(cfg *config.AgentConfig, f Fetcher, d push.Dialer) *fixture {
	logger := zap.NewNop().Sugar()
	board := render.NewBoard()
	store := inmemory.NewMemStorage()
	painter := render.NewPainter(board, render.NewFormatter(cfg.Locale, cfg.CurrencySymbol), cfg.FlashDuration, logger)
	return &fixture{
		syncer: New(cfg, f, d, painter, store, logger),
		board:  board,
		store:  store,
	}
}

func (fx *fixture) widget(id string) render.WidgetView {
	for _, v := range fx.board.Views() {
		if v.ID == id {
			return v
		}
	}
	return render.WidgetView{}
}
