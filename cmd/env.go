package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aozorabiz/kaisha-intel/internal/config"
	"github.com/aozorabiz/kaisha-intel/internal/fetcher"
	"github.com/aozorabiz/kaisha-intel/internal/intel"
	"github.com/aozorabiz/kaisha-intel/internal/localinfo"
	"github.com/aozorabiz/kaisha-intel/internal/scorer"
	"github.com/aozorabiz/kaisha-intel/internal/store"
	"github.com/aozorabiz/kaisha-intel/pkg/anthropic"
	"github.com/aozorabiz/kaisha-intel/pkg/brave"
)

// appEnv bundles the wired components the commands share.
type appEnv struct {
	store    store.Store
	pipeline *intel.Pipeline
	local    *localinfo.Service
}

func (e *appEnv) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			zap.L().Warn("store close failed", zap.Error(err))
		}
	}
}

// initEnv builds the store, API clients and pipeline from config. When
// withStore is false the store stays nil and no database connection is made.
func initEnv(ctx context.Context, withStore bool) (*appEnv, error) {
	env := &appEnv{}

	if withStore {
		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		env.store = st
	}

	var search brave.Client
	braveKey := firstEnv(cfg.Brave.Key, "BRAVE_API_KEY")
	if braveKey != "" {
		opts := []brave.Option{}
		if cfg.Brave.BaseURL != "" {
			opts = append(opts, brave.WithBaseURL(cfg.Brave.BaseURL))
		}
		if cfg.Brave.MaxRetries > 0 {
			opts = append(opts, brave.WithMaxRetries(cfg.Brave.MaxRetries))
		}
		if cfg.Brave.TimeoutSecs > 0 {
			opts = append(opts, brave.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Brave.TimeoutSecs) * time.Second,
			}))
		}
		search = brave.NewClient(braveKey, opts...)
	} else {
		zap.L().Warn("brave api key not configured, external search disabled")
	}

	var llm anthropic.Client
	anthropicKey := firstEnv(cfg.Anthropic.Key, "ANTHROPIC_API_KEY")
	if anthropicKey != "" {
		llm = anthropic.NewClient(anthropicKey)
	} else {
		zap.L().Warn("anthropic api key not configured")
	}

	pipelineCfg := intel.DefaultConfig()
	if cfg.Anthropic.Model != "" {
		pipelineCfg.Model = cfg.Anthropic.Model
	}
	if cfg.Anthropic.DocumentModel != "" {
		pipelineCfg.FactsModel = cfg.Anthropic.DocumentModel
	}
	if cfg.Anthropic.MaxTokens > 0 {
		pipelineCfg.MaxTokens = int64(cfg.Anthropic.MaxTokens)
	}
	if cfg.Intel.MaxInternalPages > 0 {
		pipelineCfg.MaxInternalPages = cfg.Intel.MaxInternalPages
	}
	if cfg.Intel.MaxExternalPages > 0 {
		pipelineCfg.MaxExternalPages = cfg.Intel.MaxExternalPages
	}
	if cfg.Intel.MaxQueries > 0 {
		pipelineCfg.MaxQueries = cfg.Intel.MaxQueries
	}
	if cfg.Intel.MaxPDFCandidates > 0 {
		pipelineCfg.MaxPDFCandidates = cfg.Intel.MaxPDFCandidates
	}
	if cfg.Intel.StaleAgeYears > 0 {
		pipelineCfg.StaleAgeYears = cfg.Intel.StaleAgeYears
	}
	if cfg.Intel.ScorerWeights != "" {
		w, err := scorer.LoadListedWeights(cfg.Intel.ScorerWeights)
		if err != nil {
			return nil, err
		}
		pipelineCfg.Weights = w
	}

	env.pipeline = intel.New(fetcher.NewHTTPFetcher(cfg.Fetch), search, llm, pipelineCfg)
	env.local = localinfo.NewService(search, env.store).
		WithTTL(time.Duration(cfg.LocalInfo.CacheTTLMinutes) * time.Minute)

	return env, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "postgres":
		url := firstEnv(sc.DatabaseURL, "DATABASE_URL")
		if url == "" {
			return nil, eris.New("cmd: store.database_url is required for the postgres driver")
		}
		return store.NewPostgres(ctx, url, nil)
	case "sqlite":
		return store.NewSQLite(sc.SQLitePath)
	default:
		return nil, eris.Errorf("cmd: unknown store driver %q", sc.Driver)
	}
}

// firstEnv returns the configured value, falling back to the named
// environment variable.
func firstEnv(configured, envName string) string {
	if configured != "" {
		return configured
	}
	return os.Getenv(envName)
}
