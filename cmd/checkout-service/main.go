package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/karoocart/checkout-service/internal/audit"
	"github.com/karoocart/checkout-service/internal/checkout"
	"github.com/karoocart/checkout-service/internal/config"
	"github.com/karoocart/checkout-service/internal/httpx"
	"github.com/karoocart/checkout-service/internal/mailer"
	"github.com/karoocart/checkout-service/internal/messaging"
	"github.com/karoocart/checkout-service/internal/order"
	"github.com/karoocart/checkout-service/internal/payfast"
	"github.com/karoocart/checkout-service/internal/payment"
	"github.com/karoocart/checkout-service/internal/product"
	"github.com/karoocart/checkout-service/internal/session"
	"github.com/karoocart/checkout-service/internal/storage"
	"github.com/karoocart/checkout-service/internal/ws"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := storage.RunMigrations(cfg.PostgresDSN, cfg.MigrationsPath); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	store, err := storage.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("database connect failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	sessions := session.NewStore(rdb, cfg.SessionTTL)

	var events messaging.Publisher
	if cfg.RabbitURL != "" {
		pub, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.PaymentsExchange)
		if err != nil {
			logger.Warn("rabbitmq unavailable, payment events disabled", "err", err)
		} else {
			events = pub
			defer pub.Close()
		}
	}

	orders := order.NewPGRepo(store.Pool())
	products := product.NewPGRepo(store.Pool())
	txs := payment.NewPGTransactionRepo(store.Pool())
	auditLog := audit.NewPGRecorder(store.Pool())

	engine := &payfast.Engine{
		MerchantID:  cfg.PayfastMerchantID,
		MerchantKey: cfg.PayfastMerchantKey,
		Passphrase:  cfg.PayfastPassphrase,
		Sandbox:     cfg.PayfastSandbox,
		ReturnURL:   cfg.ReturnURL,
		CancelURL:   cfg.CancelURL,
		NotifyURL:   cfg.NotifyURL,
	}
	validateURL := payfast.LiveValidateURL
	if cfg.PayfastSandbox {
		validateURL = payfast.SandboxValidateURL
	}
	gateway := payfast.NewClient(validateURL, cfg.PayfastPassphrase)

	var card payment.CardGateway
	if cfg.CardGatewayURL != "" {
		card = payment.NewHTTPCardGateway(cfg.CardGatewayURL, cfg.CardGatewayKey)
	}
	var mail mailer.Sender
	if cfg.EmailServiceURL != "" {
		mail = mailer.New(cfg.EmailServiceURL)
	}

	hub := ws.NewHub()
	go hub.Run(ctx)
	wsHandler := ws.NewHandler(hub, orders, logger)

	verifier := payment.NewVerifier(payment.VerifierConfig{
		Orders:       orders,
		Transactions: txs,
		Products:     products,
		Gateway:      gateway,
		Card:         card,
		Audit:        auditLog,
		Mail:         mail,
		Events:       events,
		Broadcast:    hub,
		Logger:       logger,
		Tolerance:    cfg.AmountTolerance,
	})
	svc := checkout.NewService(orders, products, sessions, engine, auditLog, logger)
	resolver := checkout.NewResolver(orders, verifier, sessions, logger)

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(logger))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.POST("/api/checkout", createCheckoutHandler(svc))
	r.GET("/api/checkout/cart", cartSnapshotHandler(sessions))
	r.GET("/checkout/payfast/:number", payfastPageHandler(orders, engine, cfg.FallbackDelay))
	r.POST("/api/payments/verify", verifyPaymentHandler(verifier))
	r.POST("/api/orders/success", orderSuccessHandler(resolver))
	r.POST("/api/orders/:number/cancel", orderCancelHandler(svc))
	r.POST("/payfast/notify", payfastNotifyHandler(orders, verifier))
	r.GET("/api/orders/lookup/:number", orderLookupHandler(orders, txs))
	r.GET("/ws/orders/:number", wsOrderHandler(wsHandler))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		logger.Info("checkout service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
	logger.Info("stopped")
}
