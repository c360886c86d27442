// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"kiosk/internal/pkg/logger"
	"kiosk/internal/pkg/tracing"

	"golang.org/x/sync/errgroup"
)

type AppCtx struct {
	Mux    *http.ServeMux
	Config *Config
}

// AppInfo 包含了启动服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 允许服务注册自己的 HTTP 路由并完成依赖装配，
	// 返回的 background 函数会作为长期运行的任务被调度。
	RegisterHandlers func(appCtx AppCtx) []func(ctx context.Context) error
}

// StartService 封装了通用的启动和优雅关停逻辑。
func StartService(info AppInfo) {
	// 1. 加载配置（路径允许用环境变量覆盖）
	configPath := getEnv("CONFIG_PATH", "config.yaml")
	cfg, err := LoadConfig(configPath)
	if err != nil {
		// 配置文件缺失时退回默认配置，本地开发无需任何文件即可启动
		logger.Logger().Warn().Err(err).Msg("config file not loaded, falling back to defaults")
		cfg = GetCurrentConfig()
	}
	if info.ServiceName != "" {
		cfg.App.ServiceName = info.ServiceName
	}
	if info.Port != 0 {
		cfg.App.Port = info.Port
	}

	logger.Init(cfg.App.ServiceName, cfg.App.LogLevel)

	// 2. 初始化 Tracer
	tp, err := tracing.InitTracerProvider(cfg.App.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 3. 装配路由与后台任务
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := http.NewServeMux()
	var backgrounds []func(ctx context.Context) error
	if info.RegisterHandlers != nil {
		backgrounds = info.RegisterHandlers(AppCtx{Mux: mux, Config: cfg})
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.App.Port), Handler: mux}

	group, groupCtx := errgroup.WithContext(runCtx)
	for _, bg := range backgrounds {
		bg := bg
		group.Go(func() error { return bg(groupCtx) })
	}
	group.Go(func() error {
		logger.Logger().Info().Msgf("%s listening on %s", cfg.App.ServiceName, server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 4. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Logger().Info().Msgf("Shutting down service %s...", cfg.App.ServiceName)
	case <-groupCtx.Done():
		logger.Logger().Error().Err(groupCtx.Err()).Msg("background task failed, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// 按顺序执行清理操作 (后进先出)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger().Error().Err(err).Msg("Error shutting down http server")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Logger().Error().Err(err).Msg("Error shutting down tracer provider")
	}
	if err := group.Wait(); err != nil {
		logger.Logger().Error().Err(err).Msg("background task exited with error")
	}

	logger.Logger().Info().Msgf("Service %s gracefully shut down.", cfg.App.ServiceName)
}
