package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"shelf-guard/config"
	"shelf-guard/models"
	"shelf-guard/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	productsResolvedCounter prometheus.Counter
	toxinFlagsCounter       prometheus.Counter
	cacheSweepCounter       prometheus.Counter
)

func init() {
	productsResolvedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "products_resolved_total",
			Help: "Total number of product sightings resolved to a product group.",
		},
	)
	toxinFlagsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "toxin_flags_found_total",
			Help: "Total number of concern-ingredient matches across all sightings.",
		},
	)
	cacheSweepCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_entries_swept_total",
			Help: "Total number of expired cache entries removed by the periodic sweep.",
		},
	)
	prometheus.MustRegister(productsResolvedCounter, toxinFlagsCounter, cacheSweepCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true, // Unique-Konflikte als gorm.ErrDuplicatedKey
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to product database.")

	// Auto-Migration
	if gin.Mode() == gin.DebugMode {
		logging.Info("Debug mode detected. Dropping tables for fresh start.")
		db.Migrator().DropTable(&models.IngredientSnapshot{}, &models.ProductListing{},
			&models.ProductGroup{}, &models.ConcernIngredient{}, &models.Retailer{})
	}
	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.Retailer{}, &models.ProductGroup{}, &models.ProductListing{},
		&models.IngredientSnapshot{}, &models.ConcernIngredient{})

	// Seeding
	seedDefaultRetailers(db, logging)
	seedDefaultConcernIngredients(db, logging)

	// Redis ist optional; ohne Redis läuft der Cache nur prozesslokal.
	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb, err = services.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Warn("Redis nicht erreichbar, Cache läuft nur prozesslokal", zap.Error(err))
			rdb = nil
		} else {
			logging.Info("Redis-Cache verbunden", zap.String("addr", cfg.RedisAddr))
		}
	}

	// Setup Services
	normalizer := services.NewNameNormalizer()
	matcher := services.NewIngredientMatcher(logging)
	loadReferenceSet(db, matcher, logging)

	cacheStore := services.NewCacheStore(db, rdb, cfg.CacheTTL(), logging)
	resolver := services.NewProductIdentityResolver(db, normalizer, matcher, logging)
	processor := services.NewProcessor(resolver, cacheStore, logging, cfg.BatchChunkSize, cfg.BatchPause())

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupProductRoutes(router, processor, logging)
	setupProductGroupRoutes(router, db, logging)
	setupRetailerRoutes(router, db, logging)
	setupConcernIngredientRoutes(router, db, matcher, logging)

	// Setup Cron: regelmäßiger Sweep abgelaufener Cache-Einträge
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.SweepSchedule, func() {
		removed := cacheStore.SweepExpired()
		cacheSweepCounter.Add(float64(removed))
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// respondResolveError bildet die Fehlertaxonomie auf HTTP-Status ab.
func respondResolveError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrBackendUnavailable):
		log.Error("Backend nicht erreichbar", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backend unavailable"})
	default:
		log.Error("Auflösung fehlgeschlagen", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolution failed"})
	}
}

func setupProductRoutes(router *gin.Engine, processor *services.Processor, log *zap.Logger) {
	rg := router.Group("/products")

	// POST - Einzelne Sichtung auflösen und matchen
	rg.POST("/resolve", func(c *gin.Context) {
		var rec services.ScrapedProduct
		if err := c.ShouldBindJSON(&rec); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		result, err := processor.ResolveAndMatch(c.Request.Context(), rec)
		if err != nil {
			respondResolveError(c, log, err)
			return
		}
		productsResolvedCounter.Inc()
		toxinFlagsCounter.Add(float64(len(result.ToxinFlags)))
		c.JSON(http.StatusOK, result)
	})

	// POST - Batch von Sichtungen (z.B. alle Karten einer Seite)
	rg.POST("/resolve/batch", func(c *gin.Context) {
		var req struct {
			Products []services.ScrapedProduct `json:"products" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'products' field is required."})
			return
		}

		results := processor.ResolveBatch(c.Request.Context(), req.Products)
		for _, item := range results {
			if item.Result != nil {
				productsResolvedCounter.Inc()
				toxinFlagsCounter.Add(float64(len(item.Result.ToxinFlags)))
			}
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	})

	// GET - Gecachtes Ergebnis zu einer ExternalID
	rg.GET("/:externalId", func(c *gin.Context) {
		externalID := c.Param("externalId")
		result, ok := processor.LookupCached(c.Request.Context(), externalID)
		if !ok {
			// Neutraler "keine Daten"-Indikator, kein Fehler
			c.JSON(http.StatusNotFound, gin.H{"external_id": externalID, "cached": false})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	// DELETE - Manuelles Cache-Busting
	rg.DELETE("/cache/:externalId", func(c *gin.Context) {
		externalID := c.Param("externalId")
		processor.Invalidate(c.Request.Context(), externalID)
		log.Info("Cache-Eintrag invalidiert", zap.String("external_id", externalID))
		c.JSON(http.StatusOK, gin.H{"invalidated": externalID})
	})

	// POST - Lookup über den Zutaten-Hash (identischer Text anderes Listing)
	rg.POST("/lookup-by-ingredients", func(c *gin.Context) {
		var req struct {
			IngredientsText string `json:"ingredients_text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'ingredients_text' field is required."})
			return
		}

		result, ok, err := processor.LookupByIngredientsText(c.Request.Context(), req.IngredientsText)
		if err != nil {
			log.Error("Hash-Lookup fehlgeschlagen", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"found": false})
			return
		}
		c.JSON(http.StatusOK, result)
	})
}

func setupProductGroupRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/product-groups")

	// GET - Gruppe per ID
	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var group models.ProductGroup
		if err := db.First(&group, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product group not found"})
				return
			}
			log.Error("DB error fetching product group", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, group)
	})

	// GET - Snapshot-Historie einer Gruppe (aktuellster zuerst)
	rg.GET("/:id/snapshots", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
			return
		}
		var snapshots []models.IngredientSnapshot
		if err := db.Where("product_group_id = ?", id).
			Order("found_at desc").Find(&snapshots).Error; err != nil {
			log.Error("DB error fetching snapshots", zap.Int("group_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, snapshots)
	})

	// GET - Listings einer Gruppe über alle Händler
	rg.GET("/:id/listings", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
			return
		}
		var listings []models.ProductListing
		if err := db.Where("product_group_id = ?", id).
			Order("last_seen_at desc").Find(&listings).Error; err != nil {
			log.Error("DB error fetching listings", zap.Int("group_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, listings)
	})
}

func setupRetailerRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/retailers")
	rg.POST("/", func(c *gin.Context) {
		var retailer models.Retailer
		if err := c.ShouldBindJSON(&retailer); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := db.Create(&retailer).Error; err != nil {
			// Namens-/Slug-Kollision: bestehende Zeile zurückgeben statt Fehler.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				var existing models.Retailer
				if err := db.Where("name = ? OR slug = ?", retailer.Name, retailer.Slug).
					First(&existing).Error; err == nil {
					c.JSON(http.StatusOK, existing)
					return
				}
			}
			log.Error("Failed to create retailer", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create retailer"})
			return
		}
		c.JSON(http.StatusCreated, retailer)
	})
	rg.GET("/", func(c *gin.Context) {
		var retailers []models.Retailer
		if err := db.Find(&retailers).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, retailers)
	})
}

func setupConcernIngredientRoutes(router *gin.Engine, db *gorm.DB, matcher *services.IngredientMatcher, log *zap.Logger) {
	rg := router.Group("/concern-ingredients")

	rg.GET("/", func(c *gin.Context) {
		var entries []models.ConcernIngredient
		if err := db.Find(&entries).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, entries)
	})

	// POST - Custom-Eintrag ergänzen; bei Namenskollision überschreibt der
	// Custom-Eintrag den Default im Matcher (last-write-wins), die DB-Zeile
	// wird upsertet. Eingebaute Einträge werden nie gelöscht.
	rg.POST("/", func(c *gin.Context) {
		var entry models.ConcernIngredient
		if err := c.ShouldBindJSON(&entry); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if entry.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		entry.IsCustom = true

		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"category", "aliases", "is_toxic", "concern_level", "health_effects", "sources", "is_custom",
			}),
		}).Create(&entry).Error
		if err != nil {
			log.Error("Failed to save concern ingredient", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save concern ingredient"})
			return
		}

		matcher.AddCustom([]models.ConcernIngredient{entry})
		c.JSON(http.StatusCreated, entry)
	})

	// POST - Direktes Matching eines Zutatentexts (Detail-/Modal-Ansicht)
	rg.POST("/match", func(c *gin.Context) {
		var req struct {
			IngredientsText string `json:"ingredients_text"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		flags := matcher.Match(req.IngredientsText)
		toxinFlagsCounter.Add(float64(len(flags)))
		c.JSON(http.StatusOK, gin.H{
			"toxin_flags":      flags,
			"ingredients_hash": services.HashIngredients(req.IngredientsText),
		})
	})
}

// loadReferenceSet lädt Defaults und Custom-Einträge aus der DB in den Matcher.
func loadReferenceSet(db *gorm.DB, matcher *services.IngredientMatcher, logger *zap.Logger) {
	var defaults []models.ConcernIngredient
	if err := db.Where("is_custom = ?", false).Order("id").Find(&defaults).Error; err != nil {
		logger.Warn("Failed to load default reference set", zap.Error(err))
	}
	matcher.Load(defaults)

	var customs []models.ConcernIngredient
	if err := db.Where("is_custom = ?", true).Order("id").Find(&customs).Error; err != nil {
		logger.Warn("Failed to load custom reference entries", zap.Error(err))
	}
	if len(customs) > 0 {
		matcher.AddCustom(customs)
	}
}

func seedDefaultRetailers(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.Retailer{}).Count(&count)
	if count > 0 {
		return
	}
	retailers := services.DefaultRetailers()
	if err := db.Create(&retailers).Error; err != nil {
		logger.Warn("Failed to seed default retailers", zap.Error(err))
	} else {
		logger.Info("Default retailers seeded.")
	}
}

func seedDefaultConcernIngredients(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.ConcernIngredient{}).Where("is_custom = ?", false).Count(&count)
	if count > 0 {
		return
	}
	entries := services.DefaultConcernIngredients()
	if err := db.Create(&entries).Error; err != nil {
		logger.Warn("Failed to seed default concern ingredients", zap.Error(err))
	} else {
		logger.Info("Default concern ingredient set seeded.", zap.Int("entries", len(entries)))
	}
}
