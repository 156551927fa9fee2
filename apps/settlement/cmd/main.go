package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"go.uber.org/zap"

	appconfig "paywave.com/apps/settlement/config"
	"paywave.com/apps/settlement/internal/core/handler"
	"paywave.com/apps/settlement/internal/core/service"
	"paywave.com/apps/settlement/internal/domain"
	"paywave.com/apps/settlement/internal/infra/bitcoin"
	"paywave.com/apps/settlement/internal/infra/evm"
	"paywave.com/apps/settlement/internal/infra/persistence"
	"paywave.com/apps/settlement/internal/infra/tron"
	vipConfig "paywave.com/pkg/config"
	"paywave.com/pkg/logger"
	"paywave.com/pkg/metrics"
	"paywave.com/pkg/orm"
	"paywave.com/pkg/xredis"
)

func main() {
	// 1. 支持 Ctrl+C / kubernetes 停止信号的 context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 加载配置
	var c appconfig.Config
	if _, err := vipConfig.LoadAndWatch("settlement", &c); err != nil {
		log.Fatalf("load config error: %v", err)
	}

	// 3. 初始化基础设施
	logger.Init(c.Name, c.LogLevel)
	defer logger.Sync()
	metrics.MustRegister()

	db := orm.NewMySQL(&orm.Config{
		DSN:         c.Mysql.DSN,
		MaxIdle:     c.Mysql.MaxIdle,
		MaxOpen:     c.Mysql.MaxOpen,
		MaxLifetime: c.Mysql.MaxLifetime,
	})
	rdb := xredis.NewRedis(&xredis.Config{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})

	logger.Info(ctx, "✅ Infrastructure initialized")

	// 4. 组件装配 (依赖注入)
	repo := persistence.New(db)

	dispatcher := service.NewDispatcher(time.Duration(c.Worker.BroadcastTimeoutSecond) * time.Second)
	registerAdapters(dispatcher, &c)

	reconciler := service.NewReconciler(repo, c.Worker.RefundEnabled)
	worker := service.NewWorker(repo, dispatcher, reconciler)
	status := service.NewStatusReporter(repo, rdb)

	// 5. HTTP 触发端点
	h := handler.NewWorkerHandler(worker, status)
	srv := &http.Server{
		Addr:    c.HTTP.Addr,
		Handler: handler.NewRouter(c.WorkerSecret, h),
	}

	go func() {
		logger.Info(ctx, "🚀 settlement worker listening", zap.String("addr", c.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	// 6. 优雅退出
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Println("settlement worker exit")
}

// registerAdapters 按配置注册各结算网络适配器
func registerAdapters(d *service.Dispatcher, c *appconfig.Config) {
	if c.Networks.EVM.Enabled {
		tokens := make(map[string]evm.Token, len(c.Networks.EVM.Tokens))
		for sym, t := range c.Networks.EVM.Tokens {
			tokens[sym] = evm.Token{Contract: t.Contract, Decimals: t.Decimals}
		}
		adapter, err := evm.New(&evm.Config{
			NodeURL:       c.Networks.EVM.NodeURL,
			PrivateKeyHex: c.Networks.EVM.PrivateKeyHex,
			NativeSymbol:  c.Networks.EVM.NativeSymbol,
			Tokens:        tokens,
		})
		if err != nil {
			log.Fatalf("EVM adapter init failed: %v", err)
		}
		d.Register("EVM", adapter)
		d.Register("ETHEREUM", adapter)
	}

	if c.Networks.Bitcoin.Enabled {
		adapter, err := bitcoin.New(
			c.Networks.Bitcoin.Host,
			c.Networks.Bitcoin.User,
			c.Networks.Bitcoin.Pass,
			&chaincfg.MainNetParams,
		)
		if err != nil {
			log.Fatalf("BTC adapter init failed: %v", err)
		}
		d.Register("BITCOIN:BTC", adapter)
	}

	if c.Networks.Tron.Enabled {
		adapter := tron.New(c.Networks.Tron.GatewayURL, c.Networks.Tron.APIKey)
		d.Register("TRON", adapter)
		// 路由提示缺失的单子兜底走 TRON 网关人工可查的路径
		d.Register(domain.NetworkUnknown, adapter)
	}
}
