// Package common provides shared dependency wiring for command
// implementations.
package common

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/jonesrussell/funnelforge/internal/audit"
	"github.com/jonesrussell/funnelforge/internal/classify"
	"github.com/jonesrussell/funnelforge/internal/config"
	"github.com/jonesrussell/funnelforge/internal/database"
	"github.com/jonesrussell/funnelforge/internal/dataforseo"
	"github.com/jonesrussell/funnelforge/internal/fetcher"
	"github.com/jonesrussell/funnelforge/internal/funnel"
	"github.com/jonesrussell/funnelforge/internal/gemini"
	"github.com/jonesrussell/funnelforge/internal/keywords"
	"github.com/jonesrussell/funnelforge/internal/logger"
)

// Deps holds the shared dependency graph commands build on.
type Deps struct {
	Config   *config.Config
	Logger   logger.Interface
	DB       *sqlx.DB
	Pages    *database.PageRepository
	Projects *database.ProjectRepository
	Jobs     *database.ResearchJobRepository
	Fetcher  *fetcher.Client
	Robots   *fetcher.RobotsChecker
	Auditor  *audit.Auditor
}

// Build loads configuration and wires the core dependencies every
// command needs: config, logger, database, repositories, and the
// audit stack.
func Build(cfgFile string) (*Deps, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	db, err := database.Connect(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	pages := database.NewPageRepository(db)
	fetchClient := fetcher.New(fetcher.Config{
		Timeout:           cfg.Fetch.Timeout,
		UserAgent:         cfg.Fetch.UserAgent,
		FallbackUserAgent: cfg.Fetch.FallbackUserAgent,
		HostRPS:           cfg.Fetch.HostRPS,
	}, log)

	return &Deps{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Pages:    pages,
		Projects: database.NewProjectRepository(db),
		Jobs:     database.NewResearchJobRepository(db),
		Fetcher:  fetchClient,
		Robots:   fetcher.NewRobotsChecker(cfg.Fetch.Timeout, cfg.Fetch.FallbackUserAgent),
		Auditor:  audit.New(fetchClient, pages, log),
	}, nil
}

// Close releases held resources.
func (d *Deps) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// Classifier builds the layered classifier batch runner.
func (d *Deps) Classifier() *classify.Runner {
	return classify.NewRunner(
		classify.New(d.Logger),
		d.Pages,
		d.Config.Classify.BatchLimit,
		d.Logger,
	)
}

// FunnelGenerator builds the keyword resolver chain and the funnel
// generator on top of it.
func (d *Deps) FunnelGenerator() *funnel.Generator {
	geminiClient := gemini.New(gemini.Config{
		APIKey:      d.Config.Gemini.APIKey,
		Model:       d.Config.Gemini.Model,
		Temperature: d.Config.Gemini.Temperature,
		Timeout:     d.Config.Gemini.Timeout,
	}, d.Logger)

	var providers []keywords.Provider
	var seoClient *dataforseo.Client
	if d.Config.DataForSEO.Enabled() {
		seoClient = dataforseo.New(dataforseo.Config{
			Login:     d.Config.DataForSEO.Login,
			Password:  d.Config.DataForSEO.Password,
			MinVolume: d.Config.DataForSEO.MinVolume,
			Limit:     d.Config.DataForSEO.Limit,
		}, d.Logger)
		providers = append(providers, keywords.NewMetricsProvider(seoClient))
	}
	providers = append(providers, keywords.NewGenerativeProvider(geminiClient))

	resolver := keywords.NewResolver(providers, d.Logger)
	generator := funnel.New(geminiClient, resolver, d.Pages, d.Config.Generator.TopicCount, d.Logger)
	if seoClient != nil {
		generator.SetCompetitorSource(seoClient)
	}
	return generator
}
