// Command relay runs the anonymous chat relay's WebSocket server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdibrokhim/yaps-relay/internal/v1/auth"
	"github.com/abdibrokhim/yaps-relay/internal/v1/bus"
	"github.com/abdibrokhim/yaps-relay/internal/v1/config"
	"github.com/abdibrokhim/yaps-relay/internal/v1/health"
	"github.com/abdibrokhim/yaps-relay/internal/v1/logging"
	"github.com/abdibrokhim/yaps-relay/internal/v1/middleware"
	"github.com/abdibrokhim/yaps-relay/internal/v1/ratelimit"
	"github.com/abdibrokhim/yaps-relay/internal/v1/roomstore"
	"github.com/abdibrokhim/yaps-relay/internal/v1/tracing"
	"github.com/abdibrokhim/yaps-relay/internal/v1/transport"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	envPaths := []string{".env", "../../../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		panic(err)
	}
	defer logging.GetLogger().Sync()

	ctx := context.Background()

	tp, err := tracing.InitTracer(ctx, cfg.OtelServiceName, cfg.OtelCollectorAddr)
	if err != nil {
		logging.Warn(ctx, "tracing disabled: failed to initialize exporter", zap.Error(err))
	}
	defer tracing.Shutdown(ctx, tp)

	var redisSvc *bus.Service
	var roomBus roomstore.Bus
	if cfg.RedisEnabled {
		redisSvc, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Fatal(ctx, "failed to connect to redis", zap.Error(err))
		}
		roomBus = redisSvc
		defer redisSvc.Close()
	}

	var validator auth.TokenValidator
	if cfg.AuthMode == "jwt" {
		v, err := auth.NewValidator(ctx, cfg.Auth0Domain, cfg.Auth0Audience)
		if err != nil {
			logging.Fatal(ctx, "failed to initialize jwt validator", zap.Error(err))
		}
		validator = v
	} else {
		validator = &auth.MockValidator{}
	}

	limiter, err := ratelimit.NewRateLimiter(cfg, redisSvc.Client(), validator)
	if err != nil {
		logging.Fatal(ctx, "failed to initialize rate limiter", zap.Error(err))
	}

	store := roomstore.NewStore(roomstore.Config{
		CodeLength:         cfg.CodeLength,
		CodeAlphabet:       cfg.CodeAlphabet,
		WaitingPoolTimeout: time.Duration(cfg.WaitingPoolTimeout) * time.Second,
		TypingExpiry:       time.Duration(cfg.TypingExpiry) * time.Second,
		CoupleEnabled:      true,
	}, roomBus)

	hub := transport.NewHub(transport.Config{
		Store:          store,
		Validator:      validator,
		Limiter:        limiter,
		AllowedOrigins: auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		AuthMode:       cfg.AuthMode,
		QueueSize:      cfg.ClientSendQueueSize,
		Keepalive:      time.Duration(cfg.KeepaliveInterval) * time.Second,
		TypingExpiry:   time.Duration(cfg.TypingExpiry) * time.Second,
	})

	healthHandler := health.NewHandler(redisSvc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	if tp != nil {
		router.Use(otelgin.Middleware(cfg.OtelServiceName))
	}

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	router.Use(cors.New(corsCfg))

	router.Use(limiter.GlobalMiddleware())

	router.GET("/ws/relay", hub.ServeWs)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "relay server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down relay server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server forced to shutdown", zap.Error(err))
	}
	store.Shutdown()
}
