package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fastvec/internal/api"
	"github.com/samcharles93/fastvec/internal/logger"
	"github.com/samcharles93/fastvec/internal/vecfile"
)

func serveCmd() *cli.Command {
	var (
		modelDir    string
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve predictions, neighbours and analogies over HTTP",
		Flags: []cli.Flag{
			modelFlag(&modelDir),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, fileConfig, &addr, &readTimeout)

			snap, err := vecfile.Load(modelDir)
			if err != nil {
				return err
			}
			server, err := api.NewServer(snap, log.With("component", "api"))
			if err != nil {
				return err
			}
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server",
				"address", addr,
				"run_id", snap.Manifest.RunID,
				"mode", string(snap.Manifest.Mode),
				"inputs", snap.Manifest.Inputs,
				"outputs", snap.Manifest.Outputs,
			)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
