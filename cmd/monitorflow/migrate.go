package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/BaSui01/monitorflow/internal/migration"
)

// runMigrate 执行审计库迁移子命令
//
//	monitorflow migrate <command> [arg] [--config path] [--db-type t --db-url u]
func runMigrate(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(out, migration.Usage())
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}

	// 位置参数可能是负数（steps -1），flag 只接受 -- 前缀之后的部分
	cmdArgs, rest := args[:1], args[1:]
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "--") {
		cmdArgs, rest = args[:2], args[2:]
	}

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database URL, overrides config")
	if err := fs.Parse(rest); err != nil {
		return errUsage
	}

	migrator, err := openMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	ctx, stop := signalContext()
	defer stop()

	cli := migration.NewCLI(migrator)
	cli.SetOutput(out)
	return cli.Run(ctx, cmdArgs)
}

func openMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	if dbURL != "" {
		if dbType == "" {
			return nil, errors.New("--db-type is required with --db-url")
		}
		return migration.NewMigratorFromURL(dbType, dbURL)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database)
}
