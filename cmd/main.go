package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cope-referral-system/internal/blockchain"
	"cope-referral-system/internal/config"
	"cope-referral-system/internal/handler"
	"cope-referral-system/internal/models"
	"cope-referral-system/internal/repository"
	"cope-referral-system/internal/scheduler"
	"cope-referral-system/internal/service"
	"cope-referral-system/pkg/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer closeDatabase(db)

	threshold, ok := new(big.Int).SetString(cfg.Rewards.MinWithdrawalThreshold, 10)
	if !ok {
		logger.Fatal("Invalid min_withdrawal_threshold:", cfg.Rewards.MinWithdrawalThreshold)
	}

	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	codeRepo := repository.NewCodeRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	swapRepo := repository.NewSwapRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)
	cursorRepo := repository.NewCursorRepository(db)

	referralSvc := service.NewReferralService(userRepo, walletRepo, codeRepo, mappingRepo, swapRepo,
		cfg.Rewards.ReferralShareBps, threshold)
	swapSvc := service.NewSwapService(swapRepo, mappingRepo, cfg.Rewards.TaxRateBps)
	settlementSvc := service.NewSettlementService(swapRepo, mappingRepo, settlementRepo,
		cfg.Rewards.ReferralShareBps, threshold)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := startIngestor(ctx, &cfg.Chain, cursorRepo, swapSvc)
	if listener != nil {
		defer listener.Stop()
	}

	settlementScheduler := scheduler.NewSettlementScheduler(settlementSvc, cfg.Rewards.SettlementCron)
	if err := settlementScheduler.Start(); err != nil {
		logger.Fatal("Failed to start settlement scheduler:", err)
	}
	defer settlementScheduler.Stop()

	router := setupHTTPRouter(referralSvc, settlementSvc, settlementScheduler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting on port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	logger.Info("Server stopped")
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := db.AutoMigrate(
		&models.User{},
		&models.WalletBinding{},
		&models.ReferralCode{},
		&models.ReferralMapping{},
		&models.SwapEvent{},
		&models.SettlementRecord{},
		&models.IngestionCursor{},
	); err != nil {
		return nil, err
	}

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	sqlDB.Close()
}

func startIngestor(ctx context.Context, chainCfg *config.ChainConfig, cursorRepo *repository.CursorRepository, swapSvc *service.SwapService) *blockchain.EventListener {
	client, err := blockchain.NewClient(chainCfg)
	if err != nil {
		logger.Error("Failed to create blockchain client:", err)
		return nil
	}

	listener := blockchain.NewEventListener(chainCfg, client, cursorRepo, swapSvc)
	go func() {
		defer client.Close()
		listener.Start(ctx)
	}()

	return listener
}

func setupHTTPRouter(referralSvc *service.ReferralService, settlementSvc *service.SettlementService, settlementScheduler *scheduler.SettlementScheduler) http.Handler {
	router := http.NewServeMux()

	userHandler := handler.NewUserHandler(referralSvc)
	walletHandler := handler.NewWalletHandler(referralSvc)
	referralHandler := handler.NewReferralHandler(referralSvc)
	settlementHandler := handler.NewSettlementHandler(settlementSvc, settlementScheduler)

	router.HandleFunc("/api/users/register", userHandler.Register)
	router.HandleFunc("/api/wallets/message", walletHandler.VerificationMessage)
	router.HandleFunc("/api/wallets/bind", walletHandler.Bind)
	router.HandleFunc("/api/referral/code/", referralHandler.GetCode)
	router.HandleFunc("/api/referral/resolve/", referralHandler.ResolveCode)
	router.HandleFunc("/api/referral/bind", referralHandler.Bind)
	router.HandleFunc("/api/referral/stats/", referralHandler.GetStats)
	router.HandleFunc("/api/leaderboard", referralHandler.GetLeaderboard)
	router.HandleFunc("/api/settlement/run", settlementHandler.Run)
	router.HandleFunc("/api/settlement/proof", settlementHandler.Proof)
	router.HandleFunc("/health", handler.HandleHealth)

	return router
}
