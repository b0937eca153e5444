package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"medverify/internal/analyzer"
	"medverify/internal/config"
	"medverify/internal/database"
	"medverify/internal/domain/user"
	"medverify/internal/domain/verification"
	"medverify/internal/middleware"
	jwtsvc "medverify/internal/pkg/jwt"
	"medverify/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)

	userRepo := user.NewRepository(db)
	userService := user.NewService(userRepo, j)
	userHandler := user.NewHandler(userService)

	imageStore := storage.NewLocalStore(cfg.UploadDir, cfg.UploadBaseURL)
	analyzerClient := analyzer.NewClient(cfg.AnalyzerURL, cfg.AnalyzerTimeout)

	verifRepo := verification.NewRepository(db)
	verifService := verification.NewService(verifRepo, imageStore, analyzerClient)
	verifHandler := verification.NewHandler(verifService)

	r := gin.Default()
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Stored images are served as plain static files.
	r.Static(cfg.UploadBaseURL, cfg.UploadDir)

	v1 := r.Group("/api/v1")
	{
		// public
		userHandler.RegisterRoutes(v1)

		// protected
		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(j))
		{
			verification.RegisterRoutes(protected, verifHandler)
		}
	}

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
