package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"seogate/internal/seogate"
)

func main() {
	app := &cli.App{
		Name:  "seogate",
		Usage: "bot-aware SSR cache gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "/seogate.yaml",
				Usage:   "path to seogate.yaml",
				EnvVars: []string{"SEOGATE_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the edge gateway",
				Action: serveAction,
			},
			{
				Name:  "sitemap",
				Usage: "sitemap maintenance",
				Subcommands: []*cli.Command{
					{
						Name:   "generate",
						Usage:  "regenerate all sitemap variants",
						Action: sitemapGenerateAction,
					},
					{
						Name:   "status",
						Usage:  "show per-variant generation and ping metadata",
						Action: sitemapStatusAction,
					},
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadService(c *cli.Context) (*seogate.Service, seogate.Config, error) {
	cfg, err := seogate.LoadConfig(c.String("config"))
	if err != nil {
		return nil, seogate.Config{}, fmt.Errorf("load config: %w", err)
	}
	svc, err := seogate.NewService(cfg)
	if err != nil {
		return nil, seogate.Config{}, fmt.Errorf("init service: %w", err)
	}
	return svc, cfg, nil
}

func serveAction(c *cli.Context) error {
	svc, cfg, err := loadService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("seogate listening on %s, origin=%s", addr, cfg.Server.Origin)
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return nil
}

func sitemapGenerateAction(c *cli.Context) error {
	svc, _, err := loadService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(c.Context, 2*time.Minute)
	defer cancel()
	if err := svc.GenerateSitemaps(ctx); err != nil {
		return err
	}
	return printSitemapStatus(ctx, svc)
}

func sitemapStatusAction(c *cli.Context) error {
	svc, _, err := loadService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()
	return printSitemapStatus(ctx, svc)
}

func printSitemapStatus(ctx context.Context, svc *seogate.Service) error {
	rows, err := svc.SitemapStatus(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No sitemap variants generated yet")
		return nil
	}

	fmt.Printf("%-14s %-8s %-20s %-10s %-10s %-8s %-8s\n",
		"Variant", "URLs", "Generated", "Took(ms)", "Size", "Google", "Bing")
	for _, m := range rows {
		generated := "-"
		if m.LastGeneratedAt.Valid {
			generated = m.LastGeneratedAt.Time.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-14s %-8d %-20s %-10d %-10d %-8s %-8s\n",
			m.Variant,
			m.URLCount,
			generated,
			m.GenerationTimeMs,
			m.FileSizeBytes,
			pingMark(m.GooglePingSuccess),
			pingMark(m.BingPingSuccess),
		)
	}
	return nil
}

func pingMark(v sql.NullBool) string {
	if !v.Valid {
		return "-"
	}
	if v.Bool {
		return "ok"
	}
	return "fail"
}
