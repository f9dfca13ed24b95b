package router

import (
	"github.com/devgrid/rss/internal/config"
	"github.com/devgrid/rss/internal/handler"
	"github.com/devgrid/rss/internal/logic"
	"github.com/devgrid/rss/internal/settlement"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(db *gorm.DB, coordinator *settlement.Coordinator, stakingLogic *logic.StakingLogic, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "reward-settlement-service",
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	{
		// 奖励规则相关路由
		ruleHandler := handler.NewRuleHandler(db)
		rules := v1.Group("/rules")
		{
			rules.POST("", ruleHandler.CreateRule)
			rules.GET("", ruleHandler.GetRules)
			rules.GET("/:id", ruleHandler.GetRule)
			rules.PUT("/:id", ruleHandler.UpdateRule)
			rules.PATCH("/:id/enabled", ruleHandler.SetRuleEnabled)
		}

		// 周期评估相关路由
		metricsHandler := handler.NewMetricsHandler(db, cfg.Reward.Weights)
		metrics := v1.Group("/metrics")
		{
			metrics.POST("", metricsHandler.CreateMetrics)
			metrics.GET("/:id", metricsHandler.GetMetrics)
			metrics.POST("/:id/scores", metricsHandler.SubmitScores)
			metrics.POST("/:id/rerun", metricsHandler.RerunMetrics)
		}

		// 奖励结算相关路由
		rewardHandler := handler.NewRewardHandler(coordinator)
		rewards := v1.Group("/rewards")
		{
			rewards.POST("/compute", rewardHandler.ComputeRewards)
			rewards.POST("/task-events", rewardHandler.HandleTaskEvent)
			rewards.POST("/mint", rewardHandler.Mint)
		}

		// 交易账本相关路由
		transactionHandler := handler.NewTransactionHandler(db, coordinator)
		transactions := v1.Group("/transactions")
		{
			transactions.POST("", transactionHandler.InitiateTransaction)
			transactions.GET("", transactionHandler.GetTransactions)
			transactions.GET("/:id", transactionHandler.GetTransaction)
			transactions.POST("/reconcile", transactionHandler.ReconcileTransaction)
		}

		// 兑换申请相关路由
		redemptionLogic := logic.NewRedemptionLogic(db, logic.NewBalanceLogic(db), logic.NewLedgerLogic(db))
		redemptionHandler := handler.NewRedemptionHandler(coordinator, redemptionLogic)
		redemptions := v1.Group("/redemptions")
		{
			redemptions.POST("", redemptionHandler.CreateRedemption)
			redemptions.GET("", redemptionHandler.GetRedemptions)
			redemptions.GET("/:id", redemptionHandler.GetRedemption)
			redemptions.POST("/:id/decide", redemptionHandler.DecideRedemption)
		}

		// 质押相关路由
		stakingHandler := handler.NewStakingHandler(stakingLogic)
		staking := v1.Group("/staking")
		{
			staking.GET("/estimate", stakingHandler.EstimateReward)
		}

		// 开发者相关路由
		balanceHandler := handler.NewBalanceHandler(db, coordinator)
		developers := v1.Group("/developers")
		{
			developers.GET("/:developer_id/balance", balanceHandler.GetBalance)
			developers.POST("/:developer_id/recompute", balanceHandler.RecomputeBalance)
			developers.PUT("/:developer_id/wallet", balanceHandler.BindWallet)
			developers.GET("/:developer_id/metrics", metricsHandler.GetDeveloperMetrics)
			developers.GET("/:developer_id/positions", stakingHandler.GetPositions)
		}
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
