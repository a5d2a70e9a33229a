package server

import (
	"time"

	"golang.org/x/time/rate"
)

// Config 服务运行配置，由 main 中的命令行参数填充
type Config struct {
	Addr               string
	DatabasePath       string
	LogPath            string
	LogLevel           string
	WebDir             string
	ObjectsPath        string
	CheckpointInterval time.Duration
	Limits             Limits
}

// Limits 每个连接的入站消息限流（令牌桶）。Rate<=0 表示不限流。
type Limits struct {
	Rate  float64 `json:"messagesPerSecond"`
	Burst int     `json:"burst"`
}

// DefaultConfig 默认配置：客户端约 60 帧/秒发送 move，留出余量
func DefaultConfig() Config {
	return Config{
		Addr:               ":8080",
		DatabasePath:       "database.json",
		LogPath:            "app.log",
		LogLevel:           "info",
		WebDir:             "web",
		CheckpointInterval: 60 * time.Second,
		Limits:             Limits{Rate: 120, Burst: 60},
	}
}

// newLimiter 按当前配置创建限流器；不限流时返回 nil
func (l Limits) newLimiter() *rate.Limiter {
	if l.Rate <= 0 {
		return nil
	}
	burst := l.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(l.Rate), burst)
}
