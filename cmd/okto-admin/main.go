package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/iabetor/okto/internal/app"
	"github.com/iabetor/okto/internal/config"
	"github.com/iabetor/okto/internal/logger"
)

var configPath = flag.String("config", "configs/okto.yaml", "配置文件路径")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "news")
	}
	commander.Register(&migrateCmd{}, "database")
	commander.Register(&usersCmd{}, "database")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// openApp 加载配置并组装服务，日志输出到 stderr。
func openApp() (*app.App, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		return nil, err
	}
	return app.New(cfg)
}
