package config

import (
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"
)

type Config struct {
	Name string `json:",default=ledgerbot"`
	Log  logx.LogConf

	Bot struct {
		Token       string
		Debug       bool `json:",optional"`
		PollTimeout int  `json:",default=60"`
	}

	// Redis backs pending contexts, and the log and registry when Postgres
	// is not configured.
	Redis redis.RedisConf `json:",optional"`

	Postgres struct {
		DataSource string `json:",optional"`
	} `json:",optional"`

	// Oracle is any OpenAI compatible chat completion endpoint. Without an
	// ApiKey free text goes through the command parser.
	Oracle struct {
		ApiKey  string        `json:",optional"`
		BaseURL string        `json:",optional"`
		Model   string        `json:",default=gpt-4o-mini"`
		Timeout time.Duration `json:",default=10s"`
	} `json:",optional"`

	Pending struct {
		TTL time.Duration `json:",default=5m"`
	} `json:",optional"`

	Dispatch struct {
		Shards int `json:",default=8"`
	} `json:",optional"`

	History struct {
		Limit int `json:",default=10"`
	} `json:",optional"`

	Ops struct {
		Addr string `json:",optional"`
	} `json:",optional"`
}

// UseRedis reports whether a Redis host is configured.
func (c Config) UseRedis() bool {
	return c.Redis.Host != ""
}

// UsePostgres reports whether a Postgres data source is configured.
func (c Config) UsePostgres() bool {
	return c.Postgres.DataSource != ""
}

// UseOracle reports whether free text should go to the NLP oracle.
func (c Config) UseOracle() bool {
	return c.Oracle.ApiKey != ""
}
