package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taskloop/authd/internal/audit"
	"github.com/taskloop/authd/internal/auth"
	"github.com/taskloop/authd/internal/server"
	"github.com/taskloop/authd/internal/service"
	"github.com/taskloop/authd/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the persistent auth server",
		Long:  "Start the long-lived HTTP server embodiment of the auth gateway.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port (default 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host (default 0.0.0.0)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	cfg := loadConfig()
	if dev {
		cfg.Logging.Level = "debug"
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	logger := newLogger(cfg.Logging.Level)

	st, err := store.Open(storeConfig(cfg))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("credential store opened", "driver", cfg.Store.Driver)

	ctx := context.Background()
	if err := auth.SeedAdmins(ctx, st, cfg.Auth.AdminEmails, logger); err != nil {
		return fmt.Errorf("seed admins: %w", err)
	}

	tokens := auth.NewTokens(jwtSecret(cfg, logger), cfg.TokenTTL(), st)
	rec := audit.NewRecorder(st, logger)
	svc := service.NewAuthService(st, tokens, auth.RolePolicy{}, rec, logger)

	srvCfg := server.Config{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		ShutdownTimeout:    cfg.ShutdownTimeout(),
		CORSOrigins:        cfg.Server.CORSOrigins,
		RateLimitRequests:  cfg.RateLimit.Requests,
		RateLimitWindow:    cfg.RateLimitWindow(),
		EventsLimit:        100,
		TokenPurgeInterval: server.DefaultConfig().TokenPurgeInterval,
	}
	srv := server.New(srvCfg, svc, logger)

	fmt.Printf("→ authd\n")
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health: http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)

	return srv.ListenAndServe()
}
