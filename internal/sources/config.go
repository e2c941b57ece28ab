package sources

import "time"

type FetcherConfig struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

func DefaultConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:      30 * time.Second,
		UserAgent:    "FeedFormatter/1.0",
		MaxBodyBytes: 10 << 20,
	}
}
