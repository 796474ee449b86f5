package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// CLI migrate 子命令，将子命令名映射到 Migrator 操作
type CLI struct {
	migrator Migrator
	out      io.Writer
}

// command 一个 migrate 子命令；needsArg 时 run 收到解析后的整数参数
type command struct {
	help     string
	needsArg bool
	run      func(c *CLI, ctx context.Context, n int) error
}

var commands = map[string]command{
	"up": {help: "apply all pending migrations", run: func(c *CLI, ctx context.Context, _ int) error {
		return c.mutate(ctx, "apply pending", c.migrator.Up)
	}},
	"down": {help: "roll back the last migration", run: func(c *CLI, ctx context.Context, _ int) error {
		return c.mutate(ctx, "roll back last", c.migrator.Down)
	}},
	"down-all": {help: "roll back every migration", run: func(c *CLI, ctx context.Context, _ int) error {
		return c.mutate(ctx, "roll back all", c.migrator.DownAll)
	}},
	"reset": {help: "roll back everything, then apply all migrations", run: func(c *CLI, ctx context.Context, _ int) error {
		if err := c.mutate(ctx, "roll back all", c.migrator.DownAll); err != nil {
			return err
		}
		return c.mutate(ctx, "apply pending", c.migrator.Up)
	}},
	"steps": {help: "apply (n>0) or roll back (n<0) n migrations", needsArg: true, run: func(c *CLI, ctx context.Context, n int) error {
		return c.mutate(ctx, fmt.Sprintf("step %+d", n), func(ctx context.Context) error {
			return c.migrator.Steps(ctx, n)
		})
	}},
	"goto": {help: "migrate to version v", needsArg: true, run: func(c *CLI, ctx context.Context, n int) error {
		if n < 0 {
			return fmt.Errorf("migrate goto: version must not be negative")
		}
		return c.mutate(ctx, fmt.Sprintf("goto %d", n), func(ctx context.Context) error {
			return c.migrator.Goto(ctx, uint(n))
		})
	}},
	"force": {help: "set the version without running migrations", needsArg: true, run: func(c *CLI, ctx context.Context, n int) error {
		return c.mutate(ctx, fmt.Sprintf("force %d", n), func(ctx context.Context) error {
			return c.migrator.Force(ctx, n)
		})
	}},
	"version": {help: "print the current schema version", run: (*CLI).printVersion},
	"status":  {help: "list migrations and whether they are applied", run: (*CLI).printStatus},
	"info":    {help: "print a migration summary", run: (*CLI).printInfo},
}

// Usage migrate 子命令帮助
func Usage() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage: monitorflow migrate <command> [arg]\n\ncommands:\n")
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, name := range names {
		cmd := commands[name]
		if cmd.needsArg {
			name += " <n>"
		}
		fmt.Fprintf(w, "  %s\t%s\n", name, cmd.help)
	}
	_ = w.Flush()
	return b.String()
}

// NewCLI 创建 migrate 子命令，默认输出到 stdout
func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, out: os.Stdout}
}

// SetOutput 替换输出
func (c *CLI) SetOutput(w io.Writer) *CLI {
	c.out = w
	return c
}

// Run 执行 args[0] 指定的子命令
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.out, Usage())
		return fmt.Errorf("migrate: missing command")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(c.out, Usage())
		return fmt.Errorf("migrate: unknown command %q", args[0])
	}

	var n int
	if cmd.needsArg {
		if len(args) < 2 {
			return fmt.Errorf("migrate %s: missing argument", args[0])
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("migrate %s: invalid argument %q", args[0], args[1])
		}
		n = v
	}
	return cmd.run(c, ctx, n)
}

// mutate 执行变更操作并打印之后的 schema 版本
func (c *CLI) mutate(ctx context.Context, what string, op func(context.Context) error) error {
	fmt.Fprintf(c.out, "%s...\n", what)
	if err := op(ctx); err != nil {
		return fmt.Errorf("migrate %s: %w", what, err)
	}
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	fmt.Fprintf(c.out, "done, schema version %s\n", formatVersion(version, dirty))
	return nil
}

func (c *CLI) printVersion(ctx context.Context, _ int) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	fmt.Fprintf(c.out, "schema version %s\n", formatVersion(version, dirty))
	return nil
}

func (c *CLI) printStatus(ctx context.Context, _ int) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("read migration status: %w", err)
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATE")
	applied := 0
	for _, s := range statuses {
		state := "pending"
		switch {
		case s.Dirty:
			state = "dirty"
		case s.Applied:
			state = "applied"
		}
		if s.Applied {
			applied++
		}
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, state)
	}
	_ = w.Flush()
	fmt.Fprintf(c.out, "%d of %d applied\n", applied, len(statuses))
	return nil
}

func (c *CLI) printInfo(ctx context.Context, _ int) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return fmt.Errorf("read migration info: %w", err)
	}
	w := tabwriter.NewWriter(c.out, 0, 0, 1, ' ', 0)
	fmt.Fprintf(w, "version:\t%s\n", formatVersion(info.CurrentVersion, info.Dirty))
	fmt.Fprintf(w, "total:\t%d\n", info.TotalMigrations)
	fmt.Fprintf(w, "applied:\t%d\n", info.AppliedMigrations)
	fmt.Fprintf(w, "pending:\t%d\n", info.PendingMigrations)
	return w.Flush()
}

func formatVersion(v uint, dirty bool) string {
	switch {
	case v == 0:
		return "none"
	case dirty:
		return fmt.Sprintf("%d (dirty)", v)
	default:
		return strconv.FormatUint(uint64(v), 10)
	}
}
