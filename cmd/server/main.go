package main

import (
	"github.com/omarmohammed271/nutricare-chat/internal/config"
	"github.com/omarmohammed271/nutricare-chat/internal/db"
	clog "github.com/omarmohammed271/nutricare-chat/internal/log"
	"github.com/omarmohammed271/nutricare-chat/internal/server"
	"github.com/omarmohammed271/nutricare-chat/internal/ws"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	// 加载配置、初始化日志、连接数据库与 Redis，然后启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	// REDIS_ADDR 配置后广播走 Redis pub/sub，多进程部署共享房间事件；
	// 否则退化为进程内总线。
	var bus ws.Bus
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		bus = ws.NewRedisBus(rdb)
		log.Info().Str("addr", cfg.RedisAddr).Msg("broadcast via redis pub/sub")
	} else {
		bus = ws.NewLoopbackBus()
		log.Info().Msg("broadcast via in-process bus")
	}

	hub := ws.NewHub(bus)
	r := server.SetupRouter(cfg, gdb, hub)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
