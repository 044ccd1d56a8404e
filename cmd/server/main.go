package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"live_commerce/internal/config"
	"live_commerce/internal/fb"
	"live_commerce/internal/ingest"
	"live_commerce/internal/inventory"
	"live_commerce/internal/model"
	"live_commerce/internal/queue"
	"live_commerce/internal/reservation"
	"live_commerce/internal/router"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 连接 SQLite，自动建表
	db, err := gorm.Open(sqlite.Open(cfg.DBPath+"?_busy_timeout=5000"), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Product{},
		&model.LiveSession{},
		&model.Reservation{},
		&model.ReservationEventLog{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 2. 组装核心：账本 → 事件 outbox → 预订引擎 → 采集回路
	ledger := inventory.NewLedger(db)
	outbox := queue.NewOutbox(rdb, cfg.ReservationEventStream)
	engine := reservation.NewEngine(db, rdb, ledger, outbox, cfg.HoldTTL)

	fbClient := fb.NewClient(cfg.FBGraphVersion, cfg.FBPageAccessToken)
	ingestSvc := ingest.NewService(db, fbClient, engine, ingest.NewRegistry(), cfg.FBUseSSE)

	// 3. 后台任务：过期清扫 + 事件转发 + 事件流水落库
	sweeper := reservation.NewSweeper(engine, cfg.SweepInterval)
	go sweeper.Run(ctx)

	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	relay := queue.NewRelay(rdb, producer, cfg.ReservationEventStream,
		cfg.ReservationEventGroup, cfg.ReservationEventConsumer)
	go relay.Run(ctx)

	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, db)
	defer consumer.Close()
	go consumer.Run(ctx)

	// 4. HTTP 路由
	r := gin.Default()
	router.Setup(r, router.Deps{
		DB:       db,
		RDB:      rdb,
		Ledger:   ledger,
		Engine:   engine,
		Ingest:   ingestSvc,
		FBClient: fbClient,
		Cfg:      cfg,
	})

	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("http serve: %v", err)
	}
}
