package main

import (
	"github.com/devgrid/rss/internal/chain"
	"github.com/devgrid/rss/internal/config"
	"github.com/devgrid/rss/internal/database"
	"github.com/devgrid/rss/internal/logger"
	"github.com/devgrid/rss/internal/logic"
	"github.com/devgrid/rss/internal/router"
	"github.com/devgrid/rss/internal/settlement"
	"github.com/devgrid/rss/internal/task"
	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	level := logger.ParseLogLevel(cfg.Log.Level)
	var log *logger.Logger
	var err error
	if cfg.Log.Output == "file" {
		log, err = logger.NewWithRotation(level, logger.RotationConfig{Filename: cfg.Log.File})
	} else {
		log, err = logger.New(level)
	}
	if err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database: %v", err)
	}

	// 初始化链上客户端与国库钱包
	var externalLedger settlement.ExternalLedger
	var wallet settlement.WalletClient = settlement.ManualWallet{}
	if cfg.Chain.Enabled {
		chainClient, err := chain.Init(cfg.Chain)
		if err != nil {
			logger.Fatal("Failed to initialize chain client: %v", err)
		}
		defer chainClient.Close()
		externalLedger = chainClient

		treasuryWallet, err := chain.NewWallet(chainClient, cfg.Chain)
		if err != nil {
			logger.Fatal("Failed to initialize treasury wallet: %v", err)
		}
		wallet = treasuryWallet
	} else {
		logger.Warn("Chain integration disabled, running with manual settlement")
	}

	// 组装结算组件
	calculator, err := logic.NewStakingCalculator(cfg.Staking.APY)
	if err != nil {
		logger.Fatal("Invalid staking configuration: %v", err)
	}
	engine, err := logic.NewRewardEngine(cfg.Reward)
	if err != nil {
		logger.Fatal("Invalid reward configuration: %v", err)
	}

	ledgerLogic := logic.NewLedgerLogic(db)
	balanceLogic := logic.NewBalanceLogic(db)
	stakingLogic := logic.NewStakingLogic(db, calculator)
	metricsLogic := logic.NewMetricsLogic(db, cfg.Reward.Weights)

	coordinator := settlement.NewCoordinator(settlement.Deps{
		DB:          db,
		Ledger:      ledgerLogic,
		Balances:    balanceLogic,
		Staking:     stakingLogic,
		Redemptions: logic.NewRedemptionLogic(db, balanceLogic, ledgerLogic),
		Engine:      engine,
		Rules:       logic.NewRuleLogic(db),
		Metrics:     metricsLogic,
		Wallet:      wallet,
		Chain:       externalLedger,
		MaxAttempts: cfg.Task.MaxConfirmAttempts,
	})

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(db, coordinator, stakingLogic, cfg)

	// 启动定时任务
	manager := task.Start(coordinator, ledgerLogic, metricsLogic, cfg)
	defer manager.Stop()

	// 启动服务器
	logger.Info("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
