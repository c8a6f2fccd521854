package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/taskloop/authd/internal/faas"
)

func newInvokeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Serve the stateless per-invocation embodiment",
		Long: `Serve the auth gateway in its stateless embodiment: every request opens a
fresh store connection, is handled in isolation, and the connection is closed
again. This mirrors what a cloud-function adapter does with faas.NewHandler;
running it locally is mainly useful for testing deployment parity.

Note: this embodiment carries no rate limiter. Production deployments must
enforce an equivalent request limit at the fronting gateway.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8081", "Listen address")

	return cmd
}

func runInvoke(addr string) error {
	cfg := loadConfig()
	logger := newLogger(cfg.Logging.Level)

	h := faas.NewHandler(faas.Config{
		Store:     storeConfig(cfg),
		JWTSecret: jwtSecret(cfg, logger),
		TokenTTL:  cfg.TokenTTL(),
	}, logger)

	fmt.Printf("→ authd (stateless embodiment)\n")
	fmt.Printf("→ Listening on http://%s\n", addr)

	return http.ListenAndServe(addr, h)
}
