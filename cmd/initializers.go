package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"hookfleet/app/handler"
	"hookfleet/app/router"
	"hookfleet/internal/fleet"
	"hookfleet/pkg/config"
	"hookfleet/pkg/logger"
	"hookfleet/pkg/notification"
	"hookfleet/pkg/platform"
	mysqlstore "hookfleet/pkg/store/mysql"
)

func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

func (app *Application) initLogger() error {
	return logger.Init()
}

func (app *Application) initMySQL() error {
	c := app.config.MySQL
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)

	repo, err := mysqlstore.NewRepository(dsn)
	if err != nil {
		return err
	}
	app.mysqlRepo = repo
	app.registerCleanup(func() {
		if err := repo.Close(); err != nil {
			logger.ErrorCtx(app.ctx, "failed to close MySQL connection: %v", err)
		}
	})
	return nil
}

// initRedis connects the distributed-lock backend. Without Redis the
// controller still runs; job locks downgrade to single-instance mode.
func (app *Application) initRedis() error {
	if app.config.Redis.Addr == "" {
		logger.WarnCtx(app.ctx, "Redis not configured, job locks run in single-instance mode")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     app.config.Redis.Addr,
		Password: app.config.Redis.Password,
		DB:       app.config.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(app.ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WarnCtx(app.ctx, "Redis unavailable (%v), job locks run in single-instance mode", err)
		client.Close()
		return nil
	}

	app.redisClient = client
	app.registerCleanup(func() {
		if err := client.Close(); err != nil {
			logger.ErrorCtx(app.ctx, "failed to close Redis connection: %v", err)
		}
	})
	return nil
}

func (app *Application) initPlatform() error {
	c := app.config.Platform
	if c.BaseURL == "" || c.Token == "" {
		return fmt.Errorf("platform base_url and token must be configured")
	}
	app.platformClient = platform.NewHTTPClient(c.BaseURL, c.Token)
	return nil
}

func (app *Application) initFleet() error {
	notifier := notification.NewWebhookNotifier()

	app.fleetManager = fleet.NewManager(
		app.ctx,
		app.config.Fleet,
		app.config.Platform.Guilds,
		app.mysqlRepo.GetDatastore(),
		app.mysqlRepo.Webhook,
		app.platformClient,
		notifier,
		fleet.RandomSelector{},
	)

	if app.config.Platform.GatewayURL != "" {
		app.gateway = platform.NewGateway(app.config.Platform.GatewayURL, app.config.Platform.Token, app.fleetManager)
	} else {
		logger.WarnCtx(app.ctx, "gateway URL not configured, drift events will not be received")
	}
	return nil
}

func (app *Application) initHandlers() error {
	app.fleetHandler = handler.NewFleetHandler(app.fleetManager)
	return nil
}

func (app *Application) initHTTPServer() error {
	if app.config.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	app.ginEngine = gin.New()
	router.NewRouter(app.fleetHandler).Setup(app.ginEngine)

	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.ginEngine,
	}
	return nil
}
