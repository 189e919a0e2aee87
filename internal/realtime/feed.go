package realtime

import (
	"context"
	"sync"
)

// Feed доставляет сигналы об изменении коллекции. Сигнал не несёт данных:
// подписчик сам перечитывает полный набор документов.
type Feed interface {
	Publish(ctx context.Context, collection string) error
	// Listen вызывает fn на каждый сигнал, пока не вызван stop или не отменён ctx.
	Listen(ctx context.Context, collection string, fn func()) (stop func())
}

// LocalFeed - внутрипроцессная рассылка. Подряд идущие сигналы схлопываются.
type LocalFeed struct {
	mtx       sync.Mutex
	listeners map[string]map[chan struct{}]struct{}
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{listeners: make(map[string]map[chan struct{}]struct{})}
}

func (f *LocalFeed) Publish(_ context.Context, collection string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	for ch := range f.listeners[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *LocalFeed) Listen(ctx context.Context, collection string, fn func()) func() {
	ch := make(chan struct{}, 1)

	f.mtx.Lock()
	if f.listeners[collection] == nil {
		f.listeners[collection] = make(map[chan struct{}]struct{})
	}
	f.listeners[collection][ch] = struct{}{}
	f.mtx.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer f.remove(collection, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				if ctx.Err() != nil {
					return
				}
				fn()
			}
		}
	}()
	return cancel
}

func (f *LocalFeed) remove(collection string, ch chan struct{}) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	delete(f.listeners[collection], ch)
	if len(f.listeners[collection]) == 0 {
		delete(f.listeners, collection)
	}
}

// Listeners - число активных подписчиков коллекции.
func (f *LocalFeed) Listeners(collection string) int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return len(f.listeners[collection])
}
