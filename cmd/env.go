package main

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenkay/filing-pipeline/internal/analyzer"
	"github.com/tenkay/filing-pipeline/internal/blob"
	"github.com/tenkay/filing-pipeline/internal/edgar"
	"github.com/tenkay/filing-pipeline/internal/fetcher"
	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/ratelimit"
	"github.com/tenkay/filing-pipeline/internal/render"
	"github.com/tenkay/filing-pipeline/internal/resilience"
	"github.com/tenkay/filing-pipeline/internal/stages"
	"github.com/tenkay/filing-pipeline/internal/store"
	anthropicpkg "github.com/tenkay/filing-pipeline/pkg/anthropic"
	"github.com/tenkay/filing-pipeline/pkg/resend"
)

// pipelineEnv holds the store and the process-wide limiters and breakers
// shared by every stage a command builds. Stages built from one env share
// a single limiter per external dependency.
type pipelineEnv struct {
	Store    store.Store
	Limits   *ratelimit.Registry
	Breakers *resilience.Breakers
	Retry    resilience.RetryConfig

	fetcher *fetcher.Client
	blobs   *blob.FileStore
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the config for mode, opens and migrates the store,
// and sets up shared limiters. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	return &pipelineEnv{
		Store:    st,
		Limits:   ratelimit.NewRegistry(cfg.RateLimits),
		Breakers: resilience.NewBreakers(cfg.Circuit.Breaker()),
		Retry:    cfg.Retry.Policy(),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "tenkay.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// secFetcher returns the EDGAR HTTP client. Every request to the SEC host
// goes through the shared sec limiter.
func (pe *pipelineEnv) secFetcher() *fetcher.Client {
	if pe.fetcher != nil {
		return pe.fetcher
	}
	sec := pe.Limits.For(ratelimit.SEC)
	limiters := map[string]ratelimit.Limiter{}
	if u, err := url.Parse(cfg.EDGAR.BaseURL); err == nil && u.Host != "" {
		limiters[u.Host] = sec
	}
	pe.fetcher = fetcher.New(fetcher.Options{
		UserAgent:    cfg.EDGAR.UserAgent,
		Timeout:      time.Duration(cfg.EDGAR.TimeoutSecs) * time.Second,
		MaxBodyBytes: cfg.EDGAR.MaxBodyBytes,
		Retry:        pe.Retry,
		Limiters:     limiters,
		Default:      sec,
	})
	return pe.fetcher
}

func (pe *pipelineEnv) blobStore() (*blob.FileStore, error) {
	if pe.blobs != nil {
		return pe.blobs, nil
	}
	bs, err := blob.NewFileStore(cfg.Blob.Root)
	if err != nil {
		return nil, eris.Wrap(err, "open blob store")
	}
	pe.blobs = bs
	return bs, nil
}

func (pe *pipelineEnv) fetchStage(opts stages.FetchOptions) (*stages.FetchStage, error) {
	bs, err := pe.blobStore()
	if err != nil {
		return nil, err
	}
	ed := edgar.New(pe.secFetcher(), cfg.EDGAR.BaseURL)
	return stages.NewFetchStage(pe.Store, ed, bs, opts), nil
}

func (pe *pipelineEnv) analyzeStage(typ model.AnalysisType) (*stages.AnalyzeStage, error) {
	bs, err := pe.blobStore()
	if err != nil {
		return nil, err
	}
	modelName := cfg.Anthropic.ModelFor(typ)
	claude := analyzer.NewClaude(
		anthropicpkg.NewClient(cfg.Anthropic.Key),
		pe.Limits.For(ratelimit.LLM),
		analyzer.Options{
			Model:       modelName,
			MaxTokens:   cfg.Anthropic.MaxTokens,
			Temperature: cfg.Anthropic.Temperature,
			Retry:       pe.Retry,
		},
	)
	zap.L().Debug("analyzer ready", zap.String("model", modelName), zap.String("type", string(typ)))
	return stages.NewAnalyzeStage(pe.Store, bs, pe.secFetcher(), claude, typ), nil
}

func (pe *pipelineEnv) generateStage() (*stages.GenerateStage, error) {
	r, err := render.New(render.Options{SiteURL: cfg.Site.URL})
	if err != nil {
		return nil, err
	}
	return stages.NewGenerateStage(pe.Store, r), nil
}

func (pe *pipelineEnv) publishStage(tier model.Tier) *stages.PublishStage {
	var opts []resend.Option
	if cfg.Resend.BaseURL != "" {
		opts = append(opts, resend.WithBaseURL(cfg.Resend.BaseURL))
	}
	return stages.NewPublishStage(
		pe.Store,
		resend.NewClient(cfg.Resend.Key, opts...),
		pe.Limits.For(ratelimit.Email),
		pe.Breakers.Get("resend"),
		stages.PublishOptions{
			From:           cfg.Resend.From,
			ReplyTo:        cfg.Resend.ReplyTo,
			Tier:           tier,
			UnsubscribeURL: cfg.Resend.UnsubscribeURL,
			Retry:          pe.Retry,
		},
	)
}
