package main

import (
	"context"
	"log"

	"cardcircle/config"
	"cardcircle/internal/auth"
	"cardcircle/internal/bootstrap"
	"cardcircle/internal/handler"
	"cardcircle/internal/server"
	"cardcircle/internal/websocket"
	"cardcircle/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppEnv)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("Failed to configure auth: %v", err)
	}

	backend, err := bootstrap.Open(ctx, cfg, l)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer backend.Close(l)

	realtime, err := bootstrap.OpenRealtime(ctx, cfg, backend, l)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	dir := realtime.Directory(backend.Directory, l)
	objects := bootstrap.OpenObjectStore(ctx, cfg, l)
	svc := bootstrap.NewServices(cfg, backend.Stores, dir, objects, realtime.Bus, l)

	hub := websocket.NewHub()
	go hub.Run(ctx)
	wsLog := websocket.NewWebSocketLogger(l)
	authorizer := websocket.NewChannelAuthorizer(svc.Access)
	if err := svc.Messages.OnMessageAppended(websocket.NewEventBridge(hub, authorizer, wsLog)); err != nil {
		log.Fatalf("Failed to attach websocket bridge: %v", err)
	}

	deps := server.Dependencies{Auth: verifier, Health: backend.Health}
	if realtime.Limiter != nil {
		deps.Limiter = realtime.Limiter
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Groups:    handler.NewGroupHandler(svc.Membership, cfg.PhotoMaxBytes, l),
		Directs:   handler.NewDirectHandler(svc.Directs, l),
		Messages:  handler.NewMessageHandler(svc.Messages, l),
		Shares:    handler.NewShareHandler(svc.Messages, l),
		WebSocket: websocket.NewHandler(verifier, hub, authorizer, wsLog, cfg.CORSOrigins),
	}, deps)

	l.Logger.Info("starting api",
		zap.String("store", cfg.StoreDriver),
		zap.Bool("redis", cfg.RedisEnabled),
		zap.String("env", cfg.AppEnv),
	)
	if err := srv.Start(); err != nil {
		l.Errorf("server stopped with error: %s", err)
	}
}
