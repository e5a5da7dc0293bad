package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mossy-p/ephemeral-chat/config"
	"github.com/mossy-p/ephemeral-chat/internal/expiry"
	"github.com/mossy-p/ephemeral-chat/internal/gateway"
	"github.com/mossy-p/ephemeral-chat/internal/handlers"
	"github.com/mossy-p/ephemeral-chat/internal/store"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg := config.Load()

	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	} else {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Core: store + expiry scheduler + broadcast gateway
	snap := store.NewSnapshotter(cfg.SnapshotPath)
	st := store.New(snap)
	sched := expiry.New(st, expiry.Options{
		SweepInterval: cfg.SweepInterval,
		MaxAge:        cfg.MaxRoomAge,
		Grace:         cfg.DeleteGrace,
		NotifyCancel:  cfg.NotifyCancel,
	})
	gw := gateway.New(st)

	st.SetNotifier(gw)
	st.SetCanceller(sched)
	sched.SetNotifier(gw)

	go sched.Run(ctx)

	// Setup Gin router
	router := gin.Default()
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Read-only room views
	router.GET("/roominfo/:code", handlers.RoomInfo(st))
	router.GET("/room-data/:code", handlers.RoomData(st))

	// WebSocket chat endpoint
	router.GET("/ws", gw.HandleWS)

	// Static client
	router.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.StaticDir))))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Port).Info("Starting chat server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("Server crashed")
			cancel()
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
}
