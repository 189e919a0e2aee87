package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"taskBoard/internal/config"
	"taskBoard/internal/directory"
	"taskBoard/internal/handlers"
	"taskBoard/internal/identity"
	"taskBoard/internal/logger"
	"taskBoard/internal/middleware"
	"taskBoard/internal/models/user"
	"taskBoard/internal/notify"
	"taskBoard/internal/realtime"
	"taskBoard/internal/repository"
	"taskBoard/internal/repository/document/inmemory"
	"taskBoard/internal/repository/document/postgres"
	"taskBoard/internal/service"
	"taskBoard/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type App struct {
	config    *config.Config
	server    *http.Server
	router    *chi.Mux
	store     repository.DocumentStore
	redis     *redis.Client
	directory *directory.Directory
	scanner   *worker.DueDateWorker
	loops     *worker.Supervisor
	shutdowns []func(context.Context) error // выполняются в обратном порядке
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(context.Context) error, 0),
	}
}

// Init собирает зависимости. При ошибке уже открытые ресурсы закрываются.
func (a *App) Init(ctx context.Context) (*App, error) {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return nil, fmt.Errorf("инициализация логгера: %w", err)
	}
	a.onShutdown(func(context.Context) error {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
		return nil
	})

	if err := a.init(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	var feed realtime.Feed = realtime.NewLocalFeed()
	if a.config.Redis.Addr != "" {
		client, err := OpenRedis(ctx, a.config.Redis)
		if err != nil {
			return err
		}
		a.redis = client
		a.onShutdown(func(context.Context) error {
			logger.Info("Закрытие Redis...")
			return client.Close()
		})
		feed = realtime.NewRedisFeed(client)
	}

	store, closeStore, err := OpenStore(ctx, a.config, feed)
	if err != nil {
		return err
	}
	a.store = store
	a.onShutdown(func(context.Context) error {
		closeStore()
		return nil
	})

	var dirOpts []directory.Option
	if a.redis != nil {
		dirOpts = append(dirOpts, directory.WithCache(a.redis, a.config.Redis.CacheTTL))
	}
	a.directory = directory.New(store, dirOpts...)

	dispatcher := notify.NewDispatcher(store)
	a.scanner = NewScanner(a.config, store, dispatcher, a.redis)
	a.loops = worker.NewSupervisor(context.Background(), a.scanner)
	a.onShutdown(func(context.Context) error {
		logger.Info("Остановка проверки сроков...")
		a.loops.Stop()
		return nil
	})

	h := handlers.NewHandler(
		service.NewProjectService(store, a.directory, dispatcher),
		service.NewTaskService(store, a.directory, dispatcher),
		service.NewBoardService(store, a.directory, dispatcher),
		service.NewNotificationService(notify.NewInbox(store), a.loops),
		store,
	)
	verifier := identity.NewVerifier(a.config.Auth.Secret, a.config.Auth.Issuer, a.config.Auth.Leeway)

	a.router = chi.NewRouter()
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logging)
	a.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	if a.config.Server.RateLimit > 0 {
		a.router.Use(middleware.RateLimit(a.config.Server.RateLimit))
	}
	h.Routes(a.router, middleware.Auth(verifier, a.rememberIdentity))

	// потоки событий не завершаются сами, поэтому Shutdown отменяет базовый контекст
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           otelhttp.NewHandler(a.router, "taskboard"),
		ReadHeaderTimeout: a.config.Server.ReadTimeout,
		ReadTimeout:       a.config.Server.ReadTimeout,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	a.server.RegisterOnShutdown(cancelRequests)
	a.onShutdown(func(ctx context.Context) error {
		logger.Info("Остановка HTTP сервера...")
		return a.server.Shutdown(ctx)
	})
	return nil
}

// rememberIdentity заводит users/{uid}, чтобы участника можно было найти по email.
func (a *App) rememberIdentity(ctx context.Context, id user.Identity) {
	if err := a.directory.Remember(ctx, id); err != nil {
		logger.Warn("App: Не удалось сохранить профиль", zap.String("uid", id.UID), zap.Error(err))
	}
}

func (a *App) onShutdown(fn func(context.Context) error) {
	a.shutdowns = append(a.shutdowns, fn)
}

func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) Store() repository.DocumentStore {
	return a.store
}

// SetScanInterval меняет период проверки сроков на лету.
func (a *App) SetScanInterval(d time.Duration) {
	if a.loops == nil || d <= 0 {
		return
	}
	a.loops.SetInterval(d)
	logger.Info("App: Новый интервал проверки сроков", zap.Duration("interval", d))
}

// Run обслуживает запросы до отмены ctx, затем корректно завершает работу.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			runErr = fmt.Errorf("HTTP сервер: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	return multierr.Append(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown выполняет все функции завершения и собирает их ошибки.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.shutdowns[i](ctx))
	}
	a.shutdowns = nil
	return err
}

// OpenRedis подключается к Redis и проверяет соединение.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.Error("App: Redis недоступен", err, zap.String("addr", cfg.Addr))
		return nil, fmt.Errorf("подключение к Redis %s: %w", cfg.Addr, err)
	}
	logger.Info("App: Подключение к Redis", zap.String("addr", cfg.Addr))
	return client, nil
}

// OpenStore выбирает хранилище документов по repository.type.
func OpenStore(ctx context.Context, cfg *config.Config, feed realtime.Feed) (repository.DocumentStore, func(), error) {
	switch cfg.Repository.Type {
	case "postgres":
		if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
			return nil, nil, err
		}
		store, err := postgres.New(ctx, cfg.Database.URL, feed, postgres.PoolConfig{
			MaxConns:        cfg.Database.MaxConnections,
			MinConns:        cfg.Database.MinConnections,
			MaxConnIdleTime: cfg.Database.IdleTimeout,
			ConnectTimeout:  cfg.Database.ConnectTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "inmemory", "":
		logger.Info("App: Хранилище в памяти")
		return inmemory.NewStore(inmemory.WithFeed(feed)), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("неизвестный repository.type %q", cfg.Repository.Type)
	}
}

// NewScanner собирает проверку сроков; с Redis проходы по пользователю
// защищены арендой от параллельных процессов.
func NewScanner(cfg *config.Config, store repository.DocumentStore, notifier worker.Notifier, client *redis.Client) *worker.DueDateWorker {
	var lease worker.Lease = worker.NewLocalLease()
	if client != nil {
		lease = worker.NewRedisLease(client)
	}
	interval := cfg.Scan.Interval
	return worker.NewDueDateWorker(store, notifier, &interval,
		worker.WithLease(lease, cfg.Scan.LeaseTTL),
		worker.WithParallelism(cfg.Scan.Parallelism),
	)
}
