package main

import (
	"context"
	"net/http"

	_ "recycling-bins/docs"
	"recycling-bins/internal/config"
	"recycling-bins/internal/handler"
	"recycling-bins/internal/logger"
	"recycling-bins/internal/repository"
	"recycling-bins/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			Recycling Bins API
//	@version		1.0
//	@description	Query recycling bin locations collected from Israeli municipal sources.
//	@BasePath		/
func main() {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	config, err := config.LoadConfig("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	logger.Init(config.Log.Level, config.Log.Format)

	// Database connection
	conn, err := pgxpool.New(context.Background(), config.DBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer conn.Close()

	// Initialize layers
	repo := repository.NewRepository(conn)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("cannot prepare schema")
	}

	binService := service.NewBinService(repo)
	binHandler := handler.NewBinHandler(binService)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	r.GET("/bins", binHandler.ListBins)
	r.GET("/bins/nearby", binHandler.Nearby)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	log.Info().Str("addr", config.ServerAddress).Msg("starting api server")
	if err := r.Run(config.ServerAddress); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
