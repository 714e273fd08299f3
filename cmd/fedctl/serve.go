package fedctl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/fedctl/internal/config"
	"github.com/giantswarm/fedctl/internal/engine"
	"github.com/giantswarm/fedctl/internal/gateway"
	"github.com/giantswarm/fedctl/internal/intent"
	"github.com/giantswarm/fedctl/internal/matcher"
	"github.com/giantswarm/fedctl/internal/mcpclient"
	"github.com/giantswarm/fedctl/internal/registry"
	"github.com/giantswarm/fedctl/internal/store"
	"github.com/giantswarm/fedctl/internal/store/memstore"
	"github.com/giantswarm/fedctl/internal/store/sqlstore"
	"github.com/giantswarm/fedctl/internal/workflow"
	"github.com/giantswarm/fedctl/pkg/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Federation Orchestrator's Gateway and Workflow Engine",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg.StoreURI)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closeStore()

	metrics := registry.NewMetrics()
	reg := registry.New(metrics)
	for _, m := range cfg.MCPs {
		desc := workflow.MCPDescriptor{
			ID:               m.ID,
			Endpoint:         m.Endpoint,
			Capabilities:     m.Capabilities,
			CostTier:         m.CostTier,
			ExpectedLatency:  m.ExpectedLatency(),
			ConcurrencyLimit: m.ConcurrencyLimit,
		}
		if err := reg.Register(desc); err != nil {
			return fmt.Errorf("registering mcp %q: %w", m.ID, err)
		}
	}

	mat := matcher.New(reg, nil)
	pool := mcpclient.New(&http.Client{Timeout: cfg.DefaultStepTimeout()})
	parser, err := intent.NewAdapter(reg)
	if err != nil {
		return fmt.Errorf("building intent adapter: %w", err)
	}

	eng := engine.New(st, parser, mat, pool, reg, engine.Options{
		DefaultParallelism: cfg.PerWorkflowParallelism,
		DefaultStepTimeout: cfg.DefaultStepTimeout(),
		TenantLimits:       cfg.TenantLimitOverrides(),
		DefaultTenantLimit: cfg.DefaultTenantLimit,
		EventBacklogSize:   cfg.EventBacklogSize,
		SubscriberBuffer:   cfg.SubscriberBuffer,
	})
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("recovering pending workflows: %w", err)
	}
	defer eng.Stop()

	probeCtx, stopProbe := context.WithCancel(ctx)
	defer stopProbe()
	go reg.ProbeLoop(probeCtx, cfg.MCPHealthProbeInterval())

	var auth gateway.TokenValidator
	if cfg.AuthSharedSecret != "" {
		auth = gateway.StaticSecretValidator{Secret: cfg.AuthSharedSecret}
	}
	gw := gateway.New(eng, gateway.Options{
		AuthValidator:  auth,
		RateLimitRPS:   cfg.TenantRateLimitRPS,
		RateLimitBurst: cfg.TenantRateLimitBurst,
	})

	httpSrv := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: gw.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Serve", "gateway listening on %s", cfg.BindAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logging.Info("Serve", "shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("gateway: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// openStore resolves a store.Store implementation from uri's scheme:
// "memory://" for the in-process Store, anything else treated as a
// Postgres DSN for sqlstore.Open.
func openStore(ctx context.Context, uri string) (store.Store, func(), error) {
	if strings.HasPrefix(uri, "memory://") {
		return memstore.New(), func() {}, nil
	}
	s, err := sqlstore.Open(ctx, uri)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}
