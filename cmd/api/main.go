package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"taskBoard/internal/app"
	"taskBoard/internal/config"
	"taskBoard/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "путь к config.yml")
	flag.Parse()

	source, err := config.Open(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Config:", err)
		os.Exit(1)
	}
	cfg, err := source.Config()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg).Init(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "App:", err)
		os.Exit(1)
	}

	// остальные поля применяются только после перезапуска
	source.Watch(func(next *config.Config) {
		a.SetScanInterval(next.Scan.Interval)
	})

	if err := a.Run(ctx); err != nil {
		logger.Error("App: Завершение с ошибкой", err)
		os.Exit(1)
	}
}
