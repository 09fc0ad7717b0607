// Command loadcache inspects and maintains the persistent tier of a loadcache
// namespace: show stored states, prime values, clear keys and warm keys from
// key=value lines on stdin.
//
// Values are written and printed as JSON and stored with the configured codec
// (loader.codec), so the tool reads and writes what the services do.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/loadcache"
	"github.com/unkn0wn-root/loadcache/codec"
	"github.com/unkn0wn-root/loadcache/config"
	asynchook "github.com/unkn0wn-root/loadcache/hooks/async"
	"github.com/unkn0wn-root/loadcache/internal/logging"
	"github.com/unkn0wn-root/loadcache/internal/wire"
	"github.com/unkn0wn-root/loadcache/keys"
	lclogrus "github.com/unkn0wn-root/loadcache/log/logrus"
	"github.com/unkn0wn-root/loadcache/sloghooks"
	"github.com/unkn0wn-root/loadcache/store"
	bcstore "github.com/unkn0wn-root/loadcache/store/bigcache"
	"github.com/unkn0wn-root/loadcache/store/memory"
	redisstore "github.com/unkn0wn-root/loadcache/store/redis"
	rstore "github.com/unkn0wn-root/loadcache/store/ristretto"
)

const usage = `usage: loadcache [flags] <command> [args]

commands:
  inspect <key>...       print the stored state and JSON value of each key
  prime <key> <json>     write value through (use -null for an explicit null)
  clear <key>...         delete stored entries
  warm                   load key=<json> lines from stdin (bare key = null);
                         keys already stored are kept

flags:
`

type cliOptions struct {
	configPath string
	backend    string
	null       bool
	timeout    time.Duration
	command    string
	args       []string
}

var (
	stdIn  io.Reader = os.Stdin
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

func parseCLIFlags(args []string) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("loadcache", flag.ContinueOnError)
	fs.SetOutput(stdErr)
	fs.Usage = func() {
		fmt.Fprint(stdErr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.configPath, "config", "", "config file (toml, yaml or json); env LOADCACHE_* overrides")
	fs.StringVar(&opts.backend, "backend", "redis", "store backend: redis, or memory, bigcache, ristretto (in-process dry runs)")
	fs.BoolVar(&opts.null, "null", false, "prime an explicit null instead of a value")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "overall command timeout")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return opts, errors.New("missing command")
	}
	opts.command, opts.args = rest[0], rest[1:]
	switch opts.backend {
	case "redis", "memory", "bigcache", "ristretto":
	default:
		return opts, fmt.Errorf("unknown backend %q", opts.backend)
	}
	return opts, nil
}

func run(opts cliOptions) int {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "load config: %v\n", err)
		return 1
	}
	logger, err := logging.New(cfg.Log, stdErr)
	if err != nil {
		fmt.Fprintf(stdErr, "init logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	st, err := openStore(opts.backend, cfg.Redis)
	if err != nil {
		logger.WithError(err).Error("open store")
		return 1
	}

	hooks := asynchook.New(sloghooks.New(slog.New(slog.NewJSONHandler(stdErr, nil)), sloghooks.Options{BatchEvery: 100}), 1, 256)
	defer hooks.Close()

	c := &cli{cfg: cfg, st: st, log: logger, hooks: hooks, opts: opts}
	if err := c.dispatch(ctx); err != nil {
		logger.WithFields(logrus.Fields{"command": opts.command}).WithError(err).Error("command failed")
		_ = st.Close(context.Background())
		return 1
	}
	if err := st.Close(context.Background()); err != nil {
		logger.WithError(err).Warn("close store")
	}
	return 0
}

func openStore(backend string, rc config.RedisConfig) (store.Store, error) {
	switch backend {
	case "memory":
		return memory.NewWithSweeper(time.Minute), nil
	case "bigcache":
		return bcstore.New(bcstore.Config{LifeWindow: time.Hour, HardMaxCacheSizeMB: 64})
	case "ristretto":
		return rstore.New(rstore.Config{NumCounters: 1e5, MaxCost: 64 << 20, BufferItems: 64})
	}
	return redisstore.New(redisstore.Config{
		Client:      goredis.NewClient(rc.RedisOptions()),
		CloseClient: true,
	})
}

type cli struct {
	cfg   *config.Config
	st    store.Store
	log   *logrus.Logger
	hooks loadcache.Hooks
	opts  cliOptions
}

func (c *cli) dispatch(ctx context.Context) error {
	switch c.opts.command {
	case "inspect":
		return c.inspect(ctx, c.opts.args)
	case "prime":
		return c.prime(ctx, c.opts.args)
	case "clear":
		return c.clear(ctx, c.opts.args)
	case "warm":
		return c.warm(ctx, stdIn)
	default:
		return fmt.Errorf("unknown command %q", c.opts.command)
	}
}

// newLoader builds a loader for the configured namespace and codec. Closing
// the loader closes the store; store Close is idempotent so run closes it
// again regardless.
func (c *cli) newLoader(load loadcache.BatchFunc[string, any]) (loadcache.Loader[string, any], error) {
	opts := loadcache.Options[string, any]{
		Store:  c.st,
		Load:   load,
		Logger: lclogrus.New(c.log),
		Hooks:  c.hooks,
	}
	if err := config.Apply(c.cfg.Loader, &opts); err != nil {
		return nil, err
	}
	return loadcache.New(opts)
}

func (c *cli) inspect(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("inspect: at least one key required")
	}
	cd, err := config.Codec[any](c.cfg.Loader.Codec)
	if err != nil {
		return err
	}
	sks := make([]string, len(args))
	for i, k := range args {
		sks[i] = keys.Namespaced(c.cfg.Loader.Namespace, k)
	}
	lookups, err := store.MGet(ctx, c.st, sks, c.cfg.Loader.BinaryPayload)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(stdOut)
	for i, lk := range lookups {
		state := wire.Classify(lk.Value, lk.OK)
		if state == wire.Present {
			fmt.Fprintf(w, "%s\t%s\t%s\n", sks[i], state, render(cd, lk.Value))
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", sks[i], state)
	}
	return w.Flush()
}

func (c *cli) prime(ctx context.Context, args []string) error {
	var v loadcache.Value[any]
	switch {
	case c.opts.null && len(args) == 1:
		v = loadcache.Null[any]()
	case !c.opts.null && len(args) == 2:
		parsed, err := parseValue(args[1])
		if err != nil {
			return fmt.Errorf("prime: %w", err)
		}
		v = parsed
	default:
		return errors.New("prime: want <key> <json> or -null <key>")
	}
	l, err := c.newLoader(refuseLoad)
	if err != nil {
		return err
	}
	defer l.Close(ctx)
	return l.Prime(ctx, args[0], v)
}

func (c *cli) clear(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("clear: at least one key required")
	}
	l, err := c.newLoader(refuseLoad)
	if err != nil {
		return err
	}
	defer l.Close(ctx)
	for _, k := range args {
		if err := l.Clear(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// warm loads every key listed on r. Keys missing from the store take their
// value from the line; a line without '=' warms the key as an explicit null.
func (c *cli) warm(ctx context.Context, r io.Reader) error {
	values := map[string]loadcache.Value[any]{}
	var order []string
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, raw, ok := strings.Cut(line, "=")
		v := loadcache.Null[any]()
		if ok {
			parsed, err := parseValue(raw)
			if err != nil {
				return fmt.Errorf("warm: line %d: %w", n, err)
			}
			v = parsed
		}
		if _, seen := values[k]; !seen {
			order = append(order, k)
		}
		values[k] = v
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if len(order) == 0 {
		c.log.Info("warm: no keys on stdin")
		return nil
	}

	l, err := c.newLoader(func(_ context.Context, ks []string) ([]loadcache.Result[any], error) {
		out := make([]loadcache.Result[any], len(ks))
		for i, k := range ks {
			out[i].Value = values[k]
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	defer l.Close(ctx)

	res, err := l.LoadMany(ctx, order)
	if err != nil {
		return err
	}
	var failed int
	for i, r := range res {
		if r.Err != nil {
			failed++
			c.log.WithField("key", order[i]).WithError(r.Err).Warn("warm failed")
		}
	}
	c.log.WithFields(logrus.Fields{"keys": len(order), "failed": failed}).Info("warm done")
	if failed > 0 {
		return fmt.Errorf("warm: %d of %d keys failed", failed, len(order))
	}
	return nil
}

var errNoLoad = errors.New("this command never loads from a source")

func refuseLoad(context.Context, []string) ([]loadcache.Result[any], error) {
	return nil, errNoLoad
}

// parseValue reads a JSON value; the literal null is the explicit null.
func parseValue(raw string) (loadcache.Value[any], error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return loadcache.Value[any]{}, fmt.Errorf("value is not JSON: %w", err)
	}
	if v == nil {
		return loadcache.Null[any](), nil
	}
	return loadcache.Some(v), nil
}

// render prints a stored payload as JSON, or quoted raw bytes when the
// configured codec cannot read it.
func render(cd codec.Codec[any], b []byte) string {
	if v, err := cd.Decode(b); err == nil {
		if out, err := json.Marshal(v); err == nil {
			return string(out)
		}
	}
	const limit = 256
	s := string(b)
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return fmt.Sprintf("undecodable %q", s)
}
