package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/lynx/internal"
	pkgconfig "github.com/starford/lynx/pkg/config"
)

// loadConfig reads --config over the defaults. The default path may be
// absent; a path given by flag or environment must exist.
func loadConfig(cmd *cli.Command) (cfg *internal.Config, found bool, err error) {
	cfg = internal.NewDefaultConfig()
	path := cmd.String("config")
	if cmd.IsSet("config") {
		found = true
		err = pkgconfig.Load(path, cfg)
	} else {
		found, err = pkgconfig.LoadOptional(path, cfg)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Info("config file not found, using defaults", slog.String("path", path))
	}
	return cfg, found, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, found, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{internal.WithConfig(cfg)}
	if found {
		opts = append(opts, internal.WithConfigFile(cmd.String("config")))
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func migrate(down bool) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return internal.Migrate(cfg, down)
	}
}

func mcp(_ context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(cfg)
}

func token(_ context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	orgID, err := strconv.ParseInt(cmd.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("usage: lynx token <org_id>")
	}
	tok, err := internal.MintToken(cfg, orgID, cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "lynx",
		Usage:  "Content and event metadata API with faceted search and an approval workflow",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "Manage the database schema",
				Commands: []*cli.Command{
					{Name: "up", Usage: "Apply pending migrations", Action: migrate(false)},
					{Name: "down", Usage: "Roll back every migration", Action: migrate(true)},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:      "token",
				Usage:     "Mint a JWT for an org (auth mode jwt)",
				ArgsUsage: "<org_id>",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime",
						Value: 30 * 24 * time.Hour,
					},
				},
				Action: token,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
