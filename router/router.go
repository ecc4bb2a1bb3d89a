package router

import (
	"context"
	"log/slog"
	"net/http"

	"finamily/api"
	"finamily/config"
	"finamily/database"
	_ "finamily/docs"
	"finamily/importer"
	"finamily/middleware"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// NewImporter builds the import service from the configured CSV dialect.
// publisher may be nil.
func NewImporter(cfg *config.Config, store *database.Store, publisher importer.EventPublisher) *importer.Service {
	csv := cfg.Import.CSV
	parsers := importer.DefaultRegistry(importer.CSVOptions{
		Delimiter:        csv.Delimiter,
		DecimalSeparator: csv.DecimalSeparator,
		DateFormats:      csv.DateFormats,
		Columns:          csv.Columns,
		DebitMarkers:     csv.DebitMarkers,
		CreditMarkers:    csv.CreditMarkers,
	})
	svc := importer.NewService(store, parsers, slog.Default())
	if publisher != nil {
		svc.WithPublisher(publisher)
	}
	return svc
}

// SetupRouter wires handlers, auth and rate limiting. Background work started
// for the router stops when ctx is canceled.
func SetupRouter(ctx context.Context, cfg *config.Config, store *database.Store, publisher importer.EventPublisher) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(CORSMiddleware())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	transactionHandler := api.NewTransactionHandler(store, NewImporter(cfg, store, publisher), cfg.Import.MaxUploadBytes())
	ruleHandler := api.NewRuleHandler(store)
	exportHandler := api.NewExportHandler(store)

	apiGroup := r.Group("/api")
	apiGroup.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authorized := apiGroup.Group("")
	authorized.Use(middleware.JWTAuth())
	{
		transactions := authorized.Group("/transactions")
		{
			transactions.GET("", transactionHandler.List)
			transactions.POST("/import",
				middleware.RateLimit(ctx, cfg.RateLimit.ImportMaxRequests, cfg.RateLimit.ImportWindow,
					"Muitas importações em sequência, aguarde e tente novamente"),
				transactionHandler.Import)
			transactions.POST("/bulk-categorize", transactionHandler.BulkCategorize)
			transactions.POST("/apply-rules", transactionHandler.ApplyRules)
			transactions.GET("/export", exportHandler.Export)
			transactions.DELETE("/delete-all", transactionHandler.DeleteAll)
			transactions.PUT("/:id", transactionHandler.Update)
			transactions.DELETE("/:id", transactionHandler.Delete)
		}

		rules := authorized.Group("/categorization-rules")
		{
			rules.GET("", ruleHandler.List)
			rules.POST("", ruleHandler.Create)
			rules.POST("/test", ruleHandler.Test)
			rules.PUT("/:id", ruleHandler.Update)
			rules.DELETE("/:id", ruleHandler.Delete)
		}
	}

	return r
}

// CORSMiddleware allows the browser front end on another origin.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
