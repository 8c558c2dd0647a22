package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"
)

func main() {
	v := viper.New()
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("connections", 200)
	v.SetDefault("movers", 4)
	v.SetDefault("duration", 2*time.Minute)
	v.SetDefault("move_interval", 250*time.Millisecond)
	v.SetEnvPrefix("LOAD")
	v.AutomaticEnv()

	var cfg loadConfig
	if err := v.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	stats := run(ctx, &http.Client{}, cfg)
	fmt.Printf("connections=%d movers=%d duration_sec=%d %s\n",
		cfg.Connections, cfg.Movers, int(cfg.Duration.Seconds()), stats)
	if stats.events.Load() == 0 || stats.failureRate() > 0.01 {
		os.Exit(1)
	}
}
