// molajo-sql renders registry documents into SQL.
//
//	molajo-sql render [flags] [registry ...]   print the statement of each registry
//	molajo-sql watch  [flags] [registry ...]   re-render registries as their files change
//	molajo-sql gen    [flags]                  write Go constants for every registry
//
// Settings come from MOLAJO_* environment variables and a .env file;
// flags override them. With -dsn, render also runs each statement and
// prints the rows as YAML.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/syssam/molajo/config"
	"github.com/syssam/molajo/contrib/memcache"
	"github.com/syssam/molajo/dialect/sql"
	"github.com/syssam/molajo/registry"
	"github.com/syssam/molajo/registry/gen"
)

const usage = `usage: molajo-sql <command> [flags] [registry ...]

commands:
  render   print the SQL of each registry (all when none is named)
  watch    print the SQL of each registry again whenever its file changes
  gen      write Go constants for every registry

run "molajo-sql <command> -h" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "molajo-sql: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}
	switch cmd, rest := args[0], args[1:]; cmd {
	case "render":
		return render(ctx, rest, stdout, stderr)
	case "watch":
		return watch(ctx, rest, stdout, stderr)
	case "gen":
		return generate(ctx, rest, stdout, stderr)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// common holds the flags shared by every command. Empty values keep the
// configured setting.
type common struct {
	envFile  string
	dialect  string
	prefix   string
	dir      string
	logLevel string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.envFile, "env", ".env", "`file` to read settings from")
	fs.StringVar(&c.dialect, "dialect", "", "SQL dialect: mysql, postgres, sqlserver or sqlite")
	fs.StringVar(&c.prefix, "prefix", "", "table prefix substituted for #__")
	fs.StringVar(&c.dir, "dir", "", "registry `directory`")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")
}

// env is the state a command runs with.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	store  *registry.Store
}

func (c *common) load(stderr io.Writer) (*env, error) {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return nil, err
	}
	if c.dialect != "" {
		cfg.Dialect = c.dialect
	}
	if c.prefix != "" {
		cfg.TablePrefix = c.prefix
	}
	if c.dir != "" {
		cfg.RegistryDir = c.dir
	}
	if c.logLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(c.logLevel)); err != nil {
			return nil, fmt.Errorf("-log-level: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	store := registry.NewStore(registry.WithStoreLogger(logger))
	if err := store.LoadDir(cfg.RegistryDir); err != nil {
		return nil, err
	}
	logger.Debug("registry loaded", "dir", cfg.RegistryDir, "documents", len(store.Names()))
	return &env{cfg: cfg, logger: logger, store: store}, nil
}

func (e *env) service() *registry.Service {
	resolver := registry.NewResolver(
		registry.Context{ApplicationID: e.cfg.ApplicationID, SiteID: e.cfg.SiteID},
		registry.WithLogger(e.logger),
	)
	return registry.NewService(e.store, resolver,
		registry.WithBuilderOptions(sql.WithDialect(e.cfg.Dialect), sql.WithTablePrefix(e.cfg.TablePrefix)),
		registry.WithCache(memcache.New(), e.cfg.CacheTTL),
		registry.WithServiceLogger(e.logger),
	)
}

// names returns the requested registries, or every loaded one.
func (e *env) names(args []string) ([]string, error) {
	if len(args) == 0 {
		names := e.store.Names()
		if len(names) == 0 {
			return nil, fmt.Errorf("no registry documents in %s", e.cfg.RegistryDir)
		}
		return names, nil
	}
	for _, n := range args {
		if _, ok := e.store.Get(n); !ok {
			return nil, &registry.NotFoundError{Name: n}
		}
	}
	return args, nil
}

// request holds the per-request overrides of render and watch.
type request struct {
	queryObject string
	pk          string
	key         string
	offset      int
	count       int
}

func (r *request) register(fs *flag.FlagSet) {
	fs.StringVar(&r.queryObject, "query-object", "", "query object: list, item, result or distinct")
	fs.StringVar(&r.pk, "pk", "", "primary key value")
	fs.StringVar(&r.key, "key", "", "name key value")
	fs.IntVar(&r.offset, "offset", 0, "pagination offset")
	fs.IntVar(&r.count, "count", 0, "pagination count")
}

func (r *request) build(name string) registry.Request {
	req := registry.Request{Registry: name, QueryObject: r.queryObject, Offset: r.offset, Count: r.count}
	if r.pk != "" {
		req.PrimaryKeyValue = r.pk
	}
	if r.key != "" {
		req.NameKeyValue = r.key
	}
	return req
}

func render(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		c   common
		req request
		dsn string
	)
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c.register(fs)
	req.register(fs)
	fs.StringVar(&dsn, "dsn", "", "database `source`; when set each statement is run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	e, err := c.load(stderr)
	if err != nil {
		return err
	}
	if dsn != "" {
		e.cfg.DSN = dsn
		if err := e.cfg.Validate(); err != nil {
			return err
		}
	}
	names, err := e.names(fs.Args())
	if err != nil {
		return err
	}
	svc := e.service()

	statements := make([]*registry.Statement, len(names))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		i, name := i, name
		eg.Go(func() error {
			st, err := svc.Statement(gctx, req.build(name))
			if err != nil {
				return err
			}
			statements[i] = st
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	if e.cfg.DSN == "" {
		for _, st := range statements {
			printStatement(stdout, st)
		}
		return nil
	}
	return execute(ctx, e, svc, names, &req, stdout)
}

// execute runs the statement of every registry and prints the rows.
func execute(ctx context.Context, e *env, svc *registry.Service, names []string, req *request, stdout io.Writer) (err error) {
	d, err := sql.Open(config.DriverName(svc.Builder().Dialect()), e.cfg.DSN)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, d.Close())
	}()
	drv := sql.NewDebugDriver(d, sql.DebugWithLogger(e.logger))

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	for _, name := range names {
		var rows sql.Rows
		if err := svc.Query(ctx, drv, req.build(name), &rows); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		result, err := sql.ScanMaps(&rows)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if result == nil {
			result = []map[string]any{}
		}
		if err := enc.Encode(map[string]any{"registry": name, "rows": result}); err != nil {
			return err
		}
	}
	if err := enc.Close(); err != nil {
		return err
	}
	e.logger.Info("executed", "stats", drv.Stats().Snapshot().String())
	return nil
}

func watch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		c   common
		req request
	)
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c.register(fs)
	req.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	e, err := c.load(stderr)
	if err != nil {
		return err
	}
	svc := e.service()
	only := make(map[string]bool)
	for _, n := range fs.Args() {
		only[n] = true
	}
	show := func(name string) {
		if len(only) > 0 && !only[name] {
			return
		}
		st, err := svc.Statement(ctx, req.build(name))
		switch {
		case registry.IsNotFound(err):
			fmt.Fprintf(stdout, "-- %s removed\n\n", name)
		case err != nil:
			e.logger.Error("render failed", "registry", name, "error", err)
		default:
			printStatement(stdout, st)
		}
	}
	for _, name := range e.store.Names() {
		show(name)
	}
	e.store.OnChange(show)
	e.logger.Info("watching", "dir", e.cfg.RegistryDir)
	return e.store.Watch(ctx, e.cfg.RegistryDir)
}

func generate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		c   common
		pkg string
		out string
	)
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c.register(fs)
	fs.StringVar(&pkg, "pkg", "model", "package name of the generated files")
	fs.StringVar(&out, "out", "model", "output `directory`")
	if err := fs.Parse(args); err != nil {
		return err
	}
	e, err := c.load(stderr)
	if err != nil {
		return err
	}
	docs := e.store.Documents()
	if len(docs) == 0 {
		return fmt.Errorf("no registry documents in %s", e.cfg.RegistryDir)
	}
	paths, err := gen.New(pkg, out).Generate(ctx, docs)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(stdout, p)
	}
	return nil
}

func printStatement(w io.Writer, st *registry.Statement) {
	fmt.Fprintf(w, "-- %s (%s, %s)\n%s\n\n", st.Registry, st.QueryObject, st.Dialect, strings.TrimRight(st.SQL, "\n"))
}
