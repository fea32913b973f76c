package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/crewline/crewline/internal/config"
	"github.com/crewline/crewline/internal/db"
	"github.com/crewline/crewline/internal/feature"
	"github.com/crewline/crewline/internal/web"
)

func dashboardCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Start the read-model dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("port") && viper.IsSet("port") {
				port = viper.GetInt("port")
			}

			app := fx.New(
				fx.NopLogger,
				fx.Provide(
					func() (*sql.DB, error) {
						frameworkDir := filepath.Join(root, ".framework")
						if err := os.MkdirAll(frameworkDir, 0o755); err != nil {
							return nil, err
						}
						return db.Open(filepath.Join(frameworkDir, "framework.db"))
					},
					feature.NewStore,
					config.NewStore,
					web.NewServer,
				),
				fx.Invoke(func(lc fx.Lifecycle, server *web.Server, storeDB *sql.DB) {
					httpServer := &http.Server{
						// Loopback only: the dashboard has no auth.
						Addr:    fmt.Sprintf("127.0.0.1:%d", port),
						Handler: server.Routes(),
					}
					watchCtx, cancelWatch := context.WithCancel(context.Background())
					lc.Append(fx.Hook{
						OnStart: func(ctx context.Context) error {
							listener, err := net.Listen("tcp", httpServer.Addr)
							if err != nil {
								return fmt.Errorf("listen on %s: %w", httpServer.Addr, err)
							}
							go server.Watch(watchCtx)
							go func() {
								_ = httpServer.Serve(listener)
							}()
							fmt.Printf("dashboard on http://%s\n", httpServer.Addr)
							return nil
						},
						OnStop: func(ctx context.Context) error {
							cancelWatch()
							err := httpServer.Shutdown(ctx)
							_ = storeDB.Close()
							return err
						},
					})
				}),
			)
			app.Run()
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on")
	return cmd
}
