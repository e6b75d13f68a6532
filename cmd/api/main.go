// Copyright 2025 Medsearch Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main provides the medicine search API: hybrid local catalog
// search with a generative fallback, substitute ranking, translation
// and prescription image analysis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/medsearch/internal/catalog"
	"github.com/your-org/medsearch/internal/config"
	"github.com/your-org/medsearch/internal/health"
	"github.com/your-org/medsearch/internal/provider"
	"github.com/your-org/medsearch/internal/search"
)

// RequestTimeout bounds one API request end to end, including the
// provider call.
const RequestTimeout = 35 * time.Second

// ServiceDependencies holds initialized service dependencies.
type ServiceDependencies struct {
	Store    *catalog.Store
	Service  *search.Service
	Logger   *zap.Logger
	Config   *config.Config
	Settings provider.SettingsFunc
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	masked := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded",
		zap.String("service", "medsearch-api"),
		zap.String("ai_provider", masked.AI.Provider),
		zap.String("gemini_api_key", masked.AI.GeminiAPIKey),
		zap.String("openai_api_key", masked.AI.OpenAIAPIKey),
		zap.String("catalog_db_path", masked.Catalog.DBPath),
		zap.String("augment_policy", masked.Search.AugmentPolicy),
		zap.Bool("dedupe_ai_results", masked.Search.DedupeAIResults),
	)

	liveCfg := &atomic.Pointer[config.Config]{}
	liveCfg.Store(cfg)

	deps, err := initializeDependencies(cfg, liveCfg.Load, logger)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}

	// Hot reload only affects values resolved per call, like provider
	// credentials. Store path and policy knobs need a restart.
	if err := config.WatchConfig(*configPath, func(next *config.Config) {
		liveCfg.Store(next)
		logger.Info("Configuration reloaded",
			zap.String("ai_provider", next.AI.Provider))
	}); err != nil {
		logger.Warn("Configuration watching unavailable", zap.Error(err))
	}
	defer func() {
		if err := deps.Store.Close(); err != nil {
			logger.Warn("Failed to close catalog store", zap.Error(err))
		}
	}()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	healthManager := health.NewManager("medsearch-api", "1.0.0", logger)
	setupHealthChecks(healthManager, deps)
	router.GET("/healthz", gin.WrapH(healthManager.HTTPHandler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/medicines/search", createSearchHandler(deps))
		v1.GET("/medicines/:id/substitutes", createSubstitutesByIDHandler(deps))
		v1.POST("/substitutes", createSubstitutesHandler(deps))
		v1.POST("/translate", createTranslateHandler(deps))
		v1.POST("/prescriptions/analyze", createPrescriptionHandler(deps))
	}

	port := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Starting medsearch API",
		zap.String("port", port),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	if err := router.Run(port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

// initializeLogger creates a logger based on configuration settings.
func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch cfg.Logging.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if cfg.Logging.Output == "file" {
		zapConfig.OutputPaths = []string{"medsearch.log"}
		zapConfig.ErrorOutputPaths = []string{"medsearch.log"}
	} else {
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	return zapConfig.Build()
}

// providerSettings maps config onto provider settings. Resolved fresh
// per call so credential changes (hot reload, env) take effect without
// a restart.
func providerSettings(current func() *config.Config) provider.SettingsFunc {
	return func() provider.Settings {
		cfg := current()
		return provider.Settings{
			Name:           cfg.AI.Provider,
			GeminiAPIKey:   cfg.AI.GeminiAPIKey,
			GeminiModel:    cfg.AI.GeminiModel,
			GeminiEndpoint: cfg.AI.GeminiEndpoint,
			OpenAIAPIKey:   cfg.AI.OpenAIAPIKey,
			OpenAIModel:    cfg.AI.OpenAIModel,
			Timeout:        time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
			MaxRetries:     cfg.AI.MaxRetries,
		}
	}
}

// initializeDependencies initializes all service dependencies. The
// AI gateway is constructed even without credentials; it degrades at
// call time.
func initializeDependencies(cfg *config.Config, current func() *config.Config, logger *zap.Logger) (*ServiceDependencies, error) {
	logger.Info("Initializing service dependencies")

	store, err := catalog.NewStore(cfg.Catalog.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog store: %w", err)
	}

	settings := providerSettings(current)
	gateway := provider.NewGateway(settings, logger)

	svc := search.NewService(store, gateway, logger, search.Options{
		AugmentPolicy:   cfg.Search.AugmentPolicy,
		DedupeAIResults: cfg.Search.DedupeAIResults,
	})

	logger.Info("Service dependencies initialized")

	return &ServiceDependencies{
		Store:    store,
		Service:  svc,
		Logger:   logger,
		Config:   cfg,
		Settings: settings,
	}, nil
}

// setupHealthChecks configures health checks. The catalog store is a
// hard dependency; the AI provider is optional and only degrades.
func setupHealthChecks(manager *health.Manager, deps *ServiceDependencies) {
	manager.AddCheckerFunc("catalog", func(ctx context.Context) health.CheckResult {
		return health.DatabaseChecker("medicines", deps.Store.Ping).Check(ctx)
	})

	manager.AddCheckerFunc("ai_provider", func(ctx context.Context) health.CheckResult {
		return health.ProviderChecker(func() error {
			_, err := provider.Resolve(deps.Settings(), deps.Logger)
			return err
		}).Check(ctx)
	})
}

// createSearchHandler handles GET /api/v1/medicines/search.
func createSearchHandler(deps *ServiceDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), RequestTimeout)
		defer cancel()

		start := time.Now()
		query := c.Query("query")

		records, err := deps.Service.SearchMedicines(ctx, query)
		if err != nil {
			deps.Logger.Error("Search failed", zap.String("query", query), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
			return
		}

		deps.Logger.Info("Search completed",
			zap.String("query", query),
			zap.Int("results", len(records)),
			zap.Duration("processing_time", time.Since(start)),
		)

		c.JSON(http.StatusOK, gin.H{"results": records, "count": len(records)})
	}
}

// SubstitutesRequest is the JSON payload for substitute lookups.
// salt_composition and reference_price describe ephemeral AI-origin
// sources that were never persisted.
type SubstitutesRequest struct {
	MedicineID      string   `json:"medicine_id" binding:"required"`
	SaltComposition string   `json:"salt_composition,omitempty"`
	ReferencePrice  *float64 `json:"reference_price,omitempty"`
}

// createSubstitutesHandler handles POST /api/v1/substitutes.
func createSubstitutesHandler(deps *ServiceDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubstitutesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}

		respondSubstitutes(c, deps, search.SubstituteQuery{
			MedicineID:      req.MedicineID,
			SaltComposition: req.SaltComposition,
			ReferencePrice:  req.ReferencePrice,
		})
	}
}

// createSubstitutesByIDHandler handles GET /api/v1/medicines/:id/substitutes.
func createSubstitutesByIDHandler(deps *ServiceDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := search.SubstituteQuery{
			MedicineID:      c.Param("id"),
			SaltComposition: c.Query("salt_composition"),
		}

		if raw := c.Query("reference_price"); raw != "" {
			price, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "reference_price must be a number"})
				return
			}
			q.ReferencePrice = &price
		}

		respondSubstitutes(c, deps, q)
	}
}

func respondSubstitutes(c *gin.Context, deps *ServiceDependencies, q search.SubstituteQuery) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), RequestTimeout)
	defer cancel()

	records, err := deps.Service.GetSubstitutes(ctx, q)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Medicine not found"})
			return
		}
		deps.Logger.Error("Substitute lookup failed",
			zap.String("medicine_id", q.MedicineID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Substitute lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": records, "count": len(records)})
}

// TranslateRequest is the JSON payload for translation.
type TranslateRequest struct {
	Text           string `json:"text" binding:"required"`
	TargetLanguage string `json:"target_language"`
}

// createTranslateHandler handles POST /api/v1/translate.
func createTranslateHandler(deps *ServiceDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TranslateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), RequestTimeout)
		defer cancel()

		translated := deps.Service.TranslateText(ctx, req.Text, req.TargetLanguage)
		c.JSON(http.StatusOK, gin.H{"translated_text": translated})
	}
}

// PrescriptionRequest carries a base64 image payload, optionally
// data-URI prefixed.
type PrescriptionRequest struct {
	Image string `json:"image" binding:"required"`
}

// createPrescriptionHandler handles POST /api/v1/prescriptions/analyze.
func createPrescriptionHandler(deps *ServiceDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PrescriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), RequestTimeout)
		defer cancel()

		names := deps.Service.AnalyzePrescription(ctx, req.Image)
		c.JSON(http.StatusOK, gin.H{"medicine_names": names, "count": len(names)})
	}
}
