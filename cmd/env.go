package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/shelfwise/shelfwise/internal/analyze"
	"github.com/shelfwise/shelfwise/internal/bootstrap"
	"github.com/shelfwise/shelfwise/internal/process"
	"github.com/shelfwise/shelfwise/internal/store"
	"github.com/shelfwise/shelfwise/internal/suppress"
	"github.com/shelfwise/shelfwise/pkg/docstore"
	"github.com/shelfwise/shelfwise/pkg/llm"
)

// appEnv holds the wired application components shared by commands.
type appEnv struct {
	Store     store.Store
	Docs      docstore.Client
	Analyzer  *analyze.Analyzer
	Registry  *suppress.Registry
	Manager   *bootstrap.Manager
	Processor *process.Processor
}

// initEnv opens the store, runs migrations and wires every component from
// the loaded config.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	docs := docstore.New(cfg.DocStore.BaseURL, cfg.DocStore.Token, nil)
	analyzer := analyze.New(llm.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Models)
	registry := suppress.NewRegistry(st)

	return &appEnv{
		Store:    st,
		Docs:     docs,
		Analyzer: analyzer,
		Registry: registry,
		Manager:  bootstrap.NewManager(docs, analyzer, st, registry, cfg.Scan),
		Processor: process.New(docs, analyzer, st, registry, process.Policies{
			Tag:           cfg.Policy.Tag,
			Correspondent: cfg.Policy.Correspondent,
			DocumentType:  cfg.Policy.DocumentType,
		}, cfg.Loop.MaxRetries),
	}, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "", "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Close releases the store connection.
func (e *appEnv) Close() {
	_ = e.Store.Close()
}
