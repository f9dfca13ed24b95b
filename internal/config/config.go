package config

import (
	"fmt"

	"github.com/devgrid/rss/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Task     TaskConfig     `mapstructure:"task"`
	Reward   RewardConfig   `mapstructure:"reward"`
	Staking  StakingConfig  `mapstructure:"staking"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ChainConfig 外部账本（代币合约所在链）配置
type ChainConfig struct {
	ChainType      string `mapstructure:"chain_type"`      // 链类型 (ethereum, polygon, etc.)
	ChainId        int64  `mapstructure:"chain_id"`        // 链ID
	RpcUrl         string `mapstructure:"rpc_url"`         // RPC节点URL
	TokenContract  string `mapstructure:"token_contract"`  // 代币合约地址
	LedgerContract string `mapstructure:"ledger_contract"` // 结算账本合约地址
	PrivateKey     string `mapstructure:"private_key"`     // 国库账户私钥（hex）
	Confirmations  int64  `mapstructure:"confirmations"`   // 确认所需区块数
	Enabled        bool   `mapstructure:"enabled"`         // 是否启用链上核对
}

// TaskConfig 后台任务配置
type TaskConfig struct {
	ReconcileInterval  int `mapstructure:"reconcile_interval"`   // 对账轮询间隔（秒）
	WatchdogInterval   int `mapstructure:"watchdog_interval"`    // 超时巡检间隔（秒）
	RewardInterval     int `mapstructure:"reward_interval"`      // 周期奖励结算间隔（秒）
	ConfirmTimeout     int `mapstructure:"confirm_timeout"`      // 确认超时窗口（秒）
	MaxConfirmAttempts int `mapstructure:"max_confirm_attempts"` // 链上查询最大重试次数
	PoolSize           int `mapstructure:"pool_size"`            // 对账协程池大小
}

// RewardConfig 奖励规则引擎配置
type RewardConfig struct {
	Weights           map[string]float64 `mapstructure:"weights"`            // 五项子指标权重
	BaseRewards       map[string]string  `mapstructure:"base_rewards"`       // 按难度的基础奖励（代币数量，十进制字符串）
	TypeMultipliers   map[string]int64   `mapstructure:"type_multipliers"`   // 任务类型乘数（基点，100=1.00x）
	StatusMultipliers map[string]int64   `mapstructure:"status_multipliers"` // 任务状态乘数（基点）
}

// StakingConfig 质押配置
type StakingConfig struct {
	APY float64 `mapstructure:"apy"` // 年化收益率（0-100）
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/rss")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "reward_settlement")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("chain.chain_type", "ethereum")
	viper.SetDefault("chain.chain_id", 1)
	viper.SetDefault("chain.confirmations", 12)
	viper.SetDefault("chain.enabled", false)
	viper.SetDefault("task.reconcile_interval", 60)
	viper.SetDefault("task.watchdog_interval", 300)
	viper.SetDefault("task.reward_interval", 3600)
	viper.SetDefault("task.confirm_timeout", 1800)
	viper.SetDefault("task.max_confirm_attempts", 10)
	viper.SetDefault("task.pool_size", 8)
	viper.SetDefault("reward.weights", map[string]float64{
		"task_completion":   0.2,
		"code_quality":      0.2,
		"collaboration":     0.2,
		"cicd_success":      0.2,
		"knowledge_sharing": 0.2,
	})
	viper.SetDefault("reward.base_rewards", map[string]string{
		"easy":   "10",
		"medium": "25",
		"hard":   "50",
	})
	viper.SetDefault("reward.type_multipliers", map[string]int64{
		"feature":     150,
		"bug":         120,
		"improvement": 100,
	})
	viper.SetDefault("reward.status_multipliers", map[string]int64{
		"done":     100,
		"verified": 120,
	})
	viper.SetDefault("staking.apy", 5.0)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	if err := config.Validate(); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	return &config
}

// Validate 校验奖励与质押配置
func (c *Config) Validate() error {
	if c.Staking.APY < 0 || c.Staking.APY > 100 {
		return fmt.Errorf("staking apy must be in [0,100], got %v", c.Staking.APY)
	}

	var weightSum float64
	for name, w := range c.Reward.Weights {
		if w < 0 {
			return fmt.Errorf("reward weight %s must not be negative", name)
		}
		weightSum += w
	}
	if len(c.Reward.Weights) > 0 && weightSum <= 0 {
		return fmt.Errorf("reward weights must sum to a positive value")
	}

	for name, m := range c.Reward.TypeMultipliers {
		if m <= 0 {
			return fmt.Errorf("type multiplier %s must be positive basis points", name)
		}
	}
	for name, m := range c.Reward.StatusMultipliers {
		if m <= 0 {
			return fmt.Errorf("status multiplier %s must be positive basis points", name)
		}
	}

	if c.Task.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm_timeout must be positive")
	}
	if c.Task.MaxConfirmAttempts <= 0 {
		return fmt.Errorf("max_confirm_attempts must be positive")
	}

	return nil
}
