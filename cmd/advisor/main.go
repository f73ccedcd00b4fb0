// Copyright 2024 Infra Advisor Project
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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/infra-advisor/internal/audit"
	"github.com/your-org/infra-advisor/internal/config"
	"github.com/your-org/infra-advisor/internal/contextengine"
	"github.com/your-org/infra-advisor/internal/knowledge"
	"github.com/your-org/infra-advisor/internal/model"
	"github.com/your-org/infra-advisor/internal/nlp"
	"github.com/your-org/infra-advisor/internal/pipeline"
	"github.com/your-org/infra-advisor/internal/recommend"
	"github.com/your-org/infra-advisor/internal/resilience"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "advisor",
		Short: "Infrastructure automation advisor",
		Long:  "Chat-driven advisor for virtualization, IaC, container and infrastructure questions, backed by a locally hosted model.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP advisor service",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe()
		},
	}

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runAsk(strings.Join(args, " "))
		},
	}

	rootCmd.AddCommand(serveCmd, askCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// advisor bundles the composed application for the serve and ask commands.
type advisor struct {
	cfg           *config.Config
	logger        *zap.Logger
	logLevel      zap.AtomicLevel
	pipeline      *pipeline.Pipeline
	contextEngine *contextengine.Engine
	modelClient   *model.Client
	kb            *knowledge.Base
	auditLog      *audit.Logger
}

// buildAdvisor loads configuration and wires every component.
func buildAdvisor() (*advisor, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, logLevel, err := initializeLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	masked := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded successfully",
		zap.String("environment", os.Getenv("ENVIRONMENT")),
		zap.String("model_base_url", masked.Model.BaseURL),
		zap.String("model_name", masked.Model.Name),
		zap.String("model_api_key", masked.Model.APIKey),
		zap.String("context_storage", masked.Context.StorageType),
		zap.String("server_addr", masked.Server.Addr),
	)

	kb := knowledge.NewBase(logger)
	if err := kb.Load(); err != nil {
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}

	engine, err := contextengine.NewEngine(contextengine.Config{
		StorageType:     contextengine.StorageType(cfg.Context.StorageType),
		SQLitePath:      cfg.Context.SQLitePath,
		SessionTTL:      cfg.SessionTTL(),
		CleanupInterval: cfg.CleanupInterval(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize context engine: %w", err)
	}

	modelClient, err := model.NewClient(model.Config{
		BaseURL: cfg.Model.BaseURL,
		APIKey:  cfg.Model.APIKey,
		Model:   cfg.Model.Name,
		Timeout: cfg.ModelTimeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model client: %w", err)
	}

	auditLog, err := audit.NewLogger(audit.Config{
		StorageType: cfg.Audit.StorageType,
		FilePath:    cfg.Audit.FilePath,
		DBPath:      cfg.Audit.DBPath,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit logger: %w", err)
	}

	recommender := recommend.NewEngine(recommend.Thresholds{
		CPUGrowthPerPeriod:    cfg.Recommend.CPUGrowthThreshold,
		MemoryGrowthPerPeriod: cfg.Recommend.MemoryGrowthThreshold,
		NetworkUtilization:    cfg.Recommend.NetworkSaturationThreshold,
		HighCPU:               cfg.Recommend.HighCPUThreshold,
		HighMemory:            cfg.Recommend.HighMemoryThreshold,
		MaxCoresPerVM:         float64(cfg.Recommend.MaxCoresPerVM),
	}, logger)

	p, err := pipeline.New(nlp.NewParser(), engine, kb, recommender, modelClient, pipeline.Options{
		MaxInputLength: cfg.Validation.MaxInputLength,
		ModelOptions: model.GenerateOptions{
			MaxTokens:   cfg.Model.MaxTokens,
			Temperature: float32(cfg.Model.Temperature),
		},
		AuditLog: auditLog,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	return &advisor{
		cfg:           cfg,
		logger:        logger,
		logLevel:      logLevel,
		pipeline:      p,
		contextEngine: engine,
		modelClient:   modelClient,
		kb:            kb,
		auditLog:      auditLog,
	}, nil
}

func (a *advisor) close() {
	_ = a.contextEngine.Close()
	_ = a.auditLog.Close()
	_ = a.logger.Sync()
}

func runServe() error {
	app, err := buildAdvisor()
	if err != nil {
		return err
	}
	defer app.close()

	if app.cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Hot reload retunes log verbosity; everything else keeps the values
	// the components were built with until the next restart.
	if err := config.WatchConfig(configPath, app.logger, func(next *config.Config) {
		app.logLevel.SetLevel(logLevelFor(next.Logging.Level))
		app.logger.Info("Configuration reloaded",
			zap.String("log_level", next.Logging.Level),
		)
	}); err != nil {
		app.logger.Warn("Configuration hot reload disabled", zap.Error(err))
	}

	monitor := resilience.NewHealthMonitor("advisor", "1.0.0", app.logger)
	monitor.AddCheck("knowledge_base", 2*time.Second, func(_ context.Context) resilience.HealthCheckResult {
		if !app.kb.Ready() {
			return resilience.HealthCheckResult{
				Status:  resilience.HealthStatusUnhealthy,
				Message: "knowledge base not loaded",
			}
		}
		return resilience.HealthCheckResult{Status: resilience.HealthStatusHealthy}
	})
	monitor.AddDependency("model", 10*time.Second, func(ctx context.Context) resilience.HealthCheckResult {
		if err := app.modelClient.Ping(ctx); err != nil {
			return resilience.HealthCheckResult{
				Status:  resilience.HealthStatusUnhealthy,
				Message: err.Error(),
			}
		}
		return resilience.HealthCheckResult{Status: resilience.HealthStatusHealthy}
	})
	monitor.AddCircuitBreaker("model", app.modelClient.Breaker())

	router := gin.Default()
	errorHandler := resilience.NewErrorHandler(app.logger)

	router.GET("/health", gin.WrapF(monitor.CreateHealthCheckHandler()))
	router.GET("/ready", gin.WrapF(monitor.CreateReadinessHandler()))

	router.POST("/chat", func(c *gin.Context) {
		var req pipeline.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			app.logger.Error("Failed to parse chat request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request format",
				"details": err.Error(),
			})
			return
		}

		resp, err := app.pipeline.Process(c.Request.Context(), req)
		if err != nil {
			serviceErr := errorHandler.WrapError(err, "processing chat turn")
			c.JSON(serviceErr.StatusCode, serviceErr.ToErrorResponse(c.GetHeader("X-Request-ID")))
			return
		}

		status := http.StatusOK
		if resp.Blocked {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, resp)
	})

	router.GET("/sessions/stats", func(c *gin.Context) {
		stats, err := app.contextEngine.GetStats(c.Request.Context())
		if err != nil {
			serviceErr := errorHandler.WrapError(err, "reading session stats")
			c.JSON(serviceErr.StatusCode, serviceErr.ToErrorResponse(c.GetHeader("X-Request-ID")))
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	router.GET("/audit/recent", func(c *gin.Context) {
		events, err := app.auditLog.RecentEvents(50)
		if err != nil {
			serviceErr := errorHandler.WrapError(err, "reading audit events")
			c.JSON(serviceErr.StatusCode, serviceErr.ToErrorResponse(c.GetHeader("X-Request-ID")))
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	})

	app.logger.Info("Starting advisor service", zap.String("addr", app.cfg.Server.Addr))
	return router.Run(app.cfg.Server.Addr)
}

func runAsk(question string) error {
	app, err := buildAdvisor()
	if err != nil {
		return err
	}
	defer app.close()

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ModelTimeout()+10*time.Second)
	defer cancel()

	resp, err := app.pipeline.Process(ctx, pipeline.Request{
		SessionID: fmt.Sprintf("cli-%d", time.Now().UnixNano()),
		Message:   question,
	})
	if err != nil {
		return err
	}

	if resp.Blocked {
		fmt.Println(resp.Text)
		fmt.Printf("(blocked: %s)\n", resp.BlockReason)
		return nil
	}

	fmt.Println(resp.Text)
	if len(resp.Clarifications) > 0 {
		fmt.Println("\nTo refine the answer, please specify:")
		for _, q := range resp.Clarifications {
			fmt.Printf("  - %s\n", q)
		}
	}
	return nil
}

// initializeLogger creates a logger based on configuration settings. The
// atomic level is returned so a configuration reload can retune verbosity
// without rebuilding the logger.
func initializeLogger(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	zapConfig.Level = zap.NewAtomicLevelAt(logLevelFor(cfg.Logging.Level))

	if cfg.Logging.Output != "" && cfg.Logging.Output != "stdout" {
		zapConfig.OutputPaths = []string{cfg.Logging.Output}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return logger, zapConfig.Level, nil
}

func logLevelFor(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
