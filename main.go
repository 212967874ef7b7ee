package main

import (
	"Gin_postgres_redis_radio_lending/app"
	"Gin_postgres_redis_radio_lending/config"
	"Gin_postgres_redis_radio_lending/db"
	"Gin_postgres_redis_radio_lending/routes"
	"context"
	"os"

	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()

	application := app.MustNew()
	defer application.Close()

	r := application.Router

	// Health
	r.GET("/healthz", func(c *app.Ctx) { c.JSON(200, app.H{"ok": true}) })

	routes.RegisterRoutes(r, application)

	app.BootstrapFirstAdmin(context.Background(), application.Config, db.NewRepo(application.DB), application.Log)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}
	application.Log.Info("listening", zap.String("port", port))
	_ = r.Run(":" + port)
}
