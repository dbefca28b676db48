package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/server"
	"app/internal/usecase"
	"app/internal/worker"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	// .envは無くても動く（本番は環境変数だけ）
	_ = godotenv.Load()

	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}

	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.ProductVariant{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderStatusHistory{},
	); err != nil {
		log.WithError(err).Fatal("migrate failed")
	}

	//Repository（GORM実装）生成
	txManager := infraRepo.NewTxManagerGorm(gormDB)
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	variantRepo := infraRepo.NewVariantGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)

	//Usecase生成
	authUC := usecase.NewAuthUsecase(cfg, userRepo)
	productUC := usecase.NewProductUsecase(productRepo)
	cartUC := usecase.NewCartUsecase(cartRepo, cartRepo, productRepo, variantRepo)
	orderUC := usecase.NewOrderUsecase(txManager, cartRepo, cfg)
	paymentUC := usecase.NewPaymentUsecase(txManager, cfg)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager)
	adminInventoryUC := usecase.NewAdminInventoryUsecase(txManager)
	expirationUC := usecase.NewExpirationUsecase(txManager, cfg)

	//Handler生成
	deps := server.Deps{
		Cfg:      cfg,
		UserRepo: userRepo,

		Auth:       handler.NewAuthHandler(authUC),
		Products:   handler.NewProductHandler(productUC),
		Cart:       handler.NewCartHandler(cartUC),
		Orders:     handler.NewOrderHandler(orderUC),
		Webhooks:   handler.NewWebhookHandler(paymentUC, cfg),
		AdminOrder: handler.NewAdminOrderHandler(adminOrderUC, paymentUC, expirationUC, adminInventoryUC),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//期限切れ掃除を裏で回す
	sweeper := worker.NewExpirationWorker(
		expirationUC,
		worker.WithInterval(time.Duration(cfg.SweepIntervalSeconds)*time.Second),
		worker.WithLogger(log.WithField("component", "expiration_worker")),
	)
	go sweeper.Run(ctx)

	e := server.New(deps)

	addr := ":" + cfg.Port
	log.WithField("addr", addr).Info("server starting")
	if err := server.Start(ctx, e, addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
