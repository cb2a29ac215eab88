package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JinTanba/conditional-token-index/internal/composer"
	"github.com/JinTanba/conditional-token-index/internal/controlplane/server"
	"github.com/JinTanba/conditional-token-index/pkg/config"
	"github.com/JinTanba/conditional-token-index/pkg/logger"
	"github.com/JinTanba/conditional-token-index/pkg/polynance"
	"github.com/JinTanba/conditional-token-index/pkg/shutdown"
	"github.com/JinTanba/conditional-token-index/pkg/wallet"
)

// sdkFactory 创建交易后端，返回的 close 在退出时调用
type sdkFactory func(ctx context.Context, cfg *config.Config, w *wallet.Wallet) (composer.SDK, func(), error)

func newPolynanceSDK(ctx context.Context, cfg *config.Config, w *wallet.Wallet) (composer.SDK, func(), error) {
	client, err := polynance.New(ctx, polynance.Options{
		Wallet:     w,
		APIBaseURL: cfg.APIBaseURL,
		ChainID:    cfg.ChainID,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// bootstrap 配置 -> 钱包 -> SDK -> App。任一步失败都不会继续，
// 缺少密钥时不会创建 SDK
func bootstrap(ctx context.Context, newSDK sdkFactory) (*composer.App, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Infof("配置已加载: %s", cfg.Redacted())

	orders, err := config.LoadOrders(cfg.OrdersFile)
	if err != nil {
		return nil, nil, nil, err
	}

	w, err := wallet.New(ctx, cfg.PrivateKey, cfg.RPCURL, wallet.WithChainID(cfg.ChainID))
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Infof("钱包地址: %s", w.Address().Hex())

	sdk, closeSDK, err := newSDK(ctx, cfg, w)
	if err != nil {
		w.Close()
		return nil, nil, nil, fmt.Errorf("create sdk: %w", err)
	}

	app := composer.NewApp(sdk, orders, composer.WithPollInterval(cfg.PollInterval))
	cleanup := func() {
		if closeSDK != nil {
			closeSDK()
		}
		w.Close()
	}
	return app, cfg, cleanup, nil
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Unhandled error: %v", r)
		}
	}()

	dotEnvErr := config.LoadDotEnv()

	logCfg := config.LoadLogConfig()
	if err := logger.Init(logger.Config{
		Level:      logCfg.Level,
		OutputFile: logCfg.File,
		MaxSize:    logCfg.MaxSize,
		MaxBackups: logCfg.MaxBackups,
		MaxAge:     logCfg.MaxAge,
		Compress:   logCfg.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	if dotEnvErr != nil {
		logger.Warnf("%v", dotEnvErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sm := shutdown.NewManager()

	app, cfg, cleanup, err := bootstrap(ctx, newPolynanceSDK)
	if err != nil {
		logger.Errorf("Error in main function: %v", err)
	} else {
		sm.OnShutdown("sdk", func(context.Context) error {
			cleanup()
			return nil
		})

		if cfg.StatusAddr != "" {
			statusSrv, err := server.New(cfg.StatusAddr, app)
			if err == nil {
				err = statusSrv.Start()
			}
			if err != nil {
				logger.Warnf("status server 启动失败: %v", err)
			} else {
				sm.OnShutdown("status-server", statusSrv.Shutdown)
			}
		}

		sm.OnShutdown("composer", func(context.Context) error {
			logger.Infof("停止前状态: %s", app.State())
			app.Stop()
			return nil
		})

		// 失败已在 Start 内记录，进程保持 BatchFailed 直到收到信号
		_ = app.Start(ctx)
	}

	<-ctx.Done()
	logger.Info("收到退出信号，正在停止...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sm.Shutdown(shutdownCtx)
}
