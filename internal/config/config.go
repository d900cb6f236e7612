package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Rewards  RewardsConfig  `mapstructure:"rewards"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type ChainConfig struct {
	Name               string   `mapstructure:"name"`
	RPCURL             string   `mapstructure:"rpc_url"`
	ChainID            uint64   `mapstructure:"chain_id"`
	TokenContract      string   `mapstructure:"token_contract"`
	ApprovedPools      []string `mapstructure:"approved_pools"`
	StartBlock         int64    `mapstructure:"start_block"`
	ConfirmationBlocks int      `mapstructure:"confirmation_blocks"`
	PullInterval       int      `mapstructure:"pull_interval"`
	BatchSize          int64    `mapstructure:"batch_size"`
	RPCTimeout         int      `mapstructure:"rpc_timeout"`
}

type RewardsConfig struct {
	TaxRateBps             int64  `mapstructure:"tax_rate_bps"`
	ReferralShareBps       int64  `mapstructure:"referral_share_bps"`
	MinWithdrawalThreshold string `mapstructure:"min_withdrawal_threshold"`
	SettlementCron         string `mapstructure:"settlement_cron"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 启动时校验配置，配置错误属于致命错误，不在运行中恢复
func (c *Config) Validate() error {
	if !isHexAddress(c.Chain.TokenContract) {
		return fmt.Errorf("invalid token_contract address: %s", c.Chain.TokenContract)
	}
	if len(c.Chain.ApprovedPools) == 0 {
		return fmt.Errorf("approved_pools must not be empty")
	}
	for _, pool := range c.Chain.ApprovedPools {
		if !isHexAddress(pool) {
			return fmt.Errorf("invalid approved pool address: %s", pool)
		}
	}
	if c.Rewards.MinWithdrawalThreshold == "" {
		return fmt.Errorf("min_withdrawal_threshold is required")
	}
	for _, ch := range c.Rewards.MinWithdrawalThreshold {
		if ch < '0' || ch > '9' {
			return fmt.Errorf("min_withdrawal_threshold must be a non-negative integer: %s",
				c.Rewards.MinWithdrawalThreshold)
		}
	}
	if c.Rewards.TaxRateBps <= 0 || c.Rewards.TaxRateBps > 10000 {
		return fmt.Errorf("tax_rate_bps must be in (0, 10000]: %d", c.Rewards.TaxRateBps)
	}
	if c.Rewards.ReferralShareBps <= 0 || c.Rewards.ReferralShareBps > 10000 {
		return fmt.Errorf("referral_share_bps must be in (0, 10000]: %d", c.Rewards.ReferralShareBps)
	}
	return nil
}

// ApprovedPoolSet 返回小写地址集合，便于监听器快速判定
func (c *ChainConfig) ApprovedPoolSet() map[string]bool {
	pools := make(map[string]bool, len(c.ApprovedPools))
	for _, pool := range c.ApprovedPools {
		pools[strings.ToLower(pool)] = true
	}
	return pools
}

func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, ch := range s[2:] {
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'f':
		case ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}
