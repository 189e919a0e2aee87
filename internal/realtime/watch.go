package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"taskBoard/internal/logger"

	"go.uber.org/zap"
)

// Watch отдаёт onChange результат load сразу и после каждого сигнала feed.
// Вызовы onChange не пересекаются, и последний из них всегда несёт самое
// свежее чтение: результат, начатый раньше уже доставленного, отбрасывается.
func Watch[T any](ctx context.Context, feed Feed, collection string, load func(context.Context) (T, error), onChange func(T)) (stop func()) {
	var (
		deliver   sync.Mutex
		started   atomic.Uint64
		delivered uint64 // под deliver
	)
	refresh := func() {
		seq := started.Add(1)
		result, err := load(ctx)
		if err != nil {
			logger.Warn("Realtime: Ошибка чтения при обновлении подписки",
				zap.String("collection", collection), zap.Error(err))
			return
		}
		deliver.Lock()
		defer deliver.Unlock()
		if seq < delivered {
			logger.Debug("Realtime: Устаревшее чтение отброшено",
				zap.String("collection", collection), zap.Uint64("seq", seq))
			return
		}
		delivered = seq
		onChange(result)
	}

	stop = feed.Listen(ctx, collection, refresh)
	refresh()
	return stop
}
