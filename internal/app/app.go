// Package app wires the record schema, the stateful aggregator and the HTTP
// surface from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/rollup/internal/core/aggregation"
	"github.com/aevon-lab/rollup/internal/core/config"
	"github.com/aevon-lab/rollup/internal/ingestion"
	"github.com/aevon-lab/rollup/internal/metrics"
	"github.com/aevon-lab/rollup/internal/projection"
	"github.com/aevon-lab/rollup/internal/schema/protobuf"
	"github.com/aevon-lab/rollup/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

type App struct {
	Server   *server.Server
	Stateful *aggregation.Stateful[protobuf.Record]
	Codec    *protobuf.Codec
	Registry *prometheus.Registry

	sampler *metrics.Sampler
}

// Build compiles the configured message and assembles every service around it.
// It fails when the aggregation policy names a field the message does not declare.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	md, err := protobuf.Compile(ctx, cfg.Schema.ProtoPath, cfg.Schema.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to compile record schema: %w", err)
	}
	timeField, err := protobuf.NewTimeField(md, cfg.Schema.TimestampField)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp field: %w", err)
	}
	schema, err := protobuf.NewSchema(md)
	if err != nil {
		return nil, fmt.Errorf("failed to build aggregation schema: %w", err)
	}

	aggConfig := cfg.AggregationConfiguration()
	if err := aggConfig.Validate(protobuf.NewFieldSet(md)); err != nil {
		return nil, fmt.Errorf("aggregation policy does not match %s: %w", md.FullName(), err)
	}
	location, err := cfg.Aggregation.TimeLocation()
	if err != nil {
		return nil, fmt.Errorf("invalid aggregation location: %w", err)
	}
	sampleInterval, err := time.ParseDuration(cfg.Aggregation.SampleInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid sample interval: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	stateful := aggregation.NewStateful(schema, aggConfig, timeField.Selector(), aggregation.StatefulOptions{
		Location: location,
		Logger:   logger,
		Observer: m,
	})
	codec := protobuf.NewCodec(md, timeField)

	srv := server.New(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), cfg.Server.Mode, reg)
	ingestion.NewService(codec, stateful, cfg.Server.MaxBodySizeMB).RegisterRoutes(srv.Engine)
	projection.NewService(stateful, codec, cfg.Policy).RegisterRoutes(srv.Engine)

	logger.Info("[App] Aggregator initialized",
		"message", md.FullName(),
		"fields", len(schema.Fields()),
		"key", aggConfig.KeyFields(),
		"excluded", aggConfig.ExcludedFields(),
		"location", location.String(),
	)

	return &App{
		Server:   srv,
		Stateful: stateful,
		Codec:    codec,
		Registry: reg,
		sampler:  metrics.NewSampler(sampleInterval, stateful, m),
	}, nil
}

// Run serves HTTP and samples aggregator state until ctx is cancelled or
// either one fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.sampler.Start(gctx) })
	g.Go(func() error { return a.Server.Run(gctx) })
	return g.Wait()
}
