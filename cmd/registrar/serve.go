package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"synnergy-registrar/internal/apiserver"
	"synnergy-registrar/internal/engine"
)

func serveCmd() *cobra.Command {
	var (
		configPath     string
		chainEndpoint  string
		atlasListen    string
		atlasBootstrap []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the registrar engine and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine.Initialize(configPath, engine.Options{
				ChainEndpoint:  chainEndpoint,
				AtlasListen:    atlasListen,
				AtlasBootstrap: atlasBootstrap,
			})
			if err != nil {
				return err
			}

			srv := apiserver.New(":"+strconv.Itoa(e.Config.APIPort), e.WorkerMetrics.Registry())
			go func() {
				if err := srv.ListenAndServe(); err != nil {
					logrus.WithError(err).Error("api server stopped")
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			logrus.Info("shutting down registrar")
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			_ = srv.Shutdown(ctx)
			return engine.Shutdown()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "registrar.conf", "path to registrar config file")
	cmd.Flags().StringVar(&chainEndpoint, "chain-endpoint", "http://127.0.0.1:8545", "chain adapter JSON-RPC endpoint")
	cmd.Flags().StringVar(&atlasListen, "atlas-listen", "/ip4/0.0.0.0/tcp/6264", "libp2p listen multiaddr")
	cmd.Flags().StringSliceVar(&atlasBootstrap, "atlas-bootstrap", nil, "atlas bootstrap peer multiaddrs")
	return cmd
}
