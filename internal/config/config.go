package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type DiscordConfig struct {
	BotToken    string `yaml:"bot_token"`
	GuildID     string `yaml:"guild_id"`
	RoleID      string `yaml:"role_id"`
	CommandName string `yaml:"command_name"`
}

type ChainConfig struct {
	RPCURL         string `yaml:"rpc_url"`
	NFTContract    string `yaml:"nft_contract"`
	CallTimeoutSec int    `yaml:"call_timeout_sec"`
}

type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec"`     // cron-выражение, UTC
	DelayMS int    `yaml:"delay_ms"` // пауза между адресами, чтобы не упереться в rate limit RPC
}

type Config struct {
	Server struct {
		Port    int    `yaml:"port"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Discord   DiscordConfig   `yaml:"discord"`
	Chain     ChainConfig     `yaml:"chain"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

func LoadConfig() *Config {
	f, err := os.Open("config/config.yaml")
	if err != nil {
		panic("Failed to open config.yaml: " + err.Error())
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		panic("Failed to parse config.yaml: " + err.Error())
	}

	// токен бота лучше передавать через окружение, а не хранить в файле
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		cfg.Discord.BotToken = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:3000"
	}
	if cfg.Discord.CommandName == "" {
		cfg.Discord.CommandName = "verifymonadversenft"
	}
	if cfg.Chain.RPCURL == "" {
		cfg.Chain.RPCURL = "https://monad-mainnet.drpc.org"
	}
	if cfg.Chain.CallTimeoutSec == 0 {
		cfg.Chain.CallTimeoutSec = 15
	}
	if cfg.Scheduler.Spec == "" {
		cfg.Scheduler.Spec = "0 0 * * *" // ежедневно в полночь UTC
	}
	if cfg.Scheduler.DelayMS == 0 {
		cfg.Scheduler.DelayMS = 500
	}
	return &cfg
}

// CallTimeout — таймаут одного обращения к RPC-ноде.
func (c ChainConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

// Delay — пауза между последовательными проверками в планировщике.
func (c SchedulerConfig) Delay() time.Duration {
	return time.Duration(c.DelayMS) * time.Millisecond
}
