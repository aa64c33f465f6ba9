package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alexbotov/itchdesk/internal/cache"
	"github.com/alexbotov/itchdesk/internal/config"
	"github.com/alexbotov/itchdesk/internal/credentials"
	"github.com/alexbotov/itchdesk/internal/database"
	"github.com/alexbotov/itchdesk/internal/diag"
	"github.com/alexbotov/itchdesk/internal/library"
	"github.com/alexbotov/itchdesk/internal/mockapi"
	"github.com/alexbotov/itchdesk/pkg/itchio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const usage = `itchdesk - itch.io library client

Usage: itchdesk <command> [flags] [args]

Commands:
  login        Log in with -username/-password or -key and save the API key
  logout       Forget the saved API key
  me           Show the logged in user
  games        List games you develop (-local reads the synced database)
  keys         List your purchases (-page N, -local)
  collections  List your collections, or the games of -id N (-page N)
  search       Search games by title: search <query>
  game         Show a game: game <id>
  uploads      List a game's files: uploads <game id> [-download-key N]
  download     Resolve a download link: download <upload id> [-download-key N | -game N]
  sync         Mirror your library into the database
  runs         List past syncs (needs -db)
  mock         Serve a fake itch.io API with demo data (-addr, -rate-limit)

Run 'itchdesk <command> -h' for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Fatalf("itchdesk: %v", err)
	}
}

var errUsage = errors.New("usage")

// command flags beyond the shared config flags
type cmdFlags struct {
	username    string
	password    string
	key         string
	page        int
	id          int64
	downloadKey int64
	gameID      int64
	local       bool
	addr        string
	rateLimit   time.Duration
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		return errUsage
	}
	name := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	var cf cmdFlags
	switch name {
	case "login":
		fs.StringVar(&cf.username, "username", "", "itch.io username")
		fs.StringVar(&cf.password, "password", "", "itch.io password")
		fs.StringVar(&cf.key, "key", "", "Existing API key")
	case "games":
		fs.BoolVar(&cf.local, "local", false, "List from the synced database")
	case "keys":
		fs.IntVar(&cf.page, "page", 1, "Page number")
		fs.BoolVar(&cf.local, "local", false, "List from the synced database")
	case "collections":
		fs.Int64Var(&cf.id, "id", 0, "List the games of this collection")
		fs.IntVar(&cf.page, "page", 1, "Page number")
	case "uploads":
		fs.Int64Var(&cf.downloadKey, "download-key", 0, "Download key to use (looked up in the database when omitted)")
	case "download":
		fs.Int64Var(&cf.downloadKey, "download-key", 0, "Download key to use")
		fs.Int64Var(&cf.gameID, "game", 0, "Game the upload belongs to, to look up your download key in the database")
	case "mock":
		fs.StringVar(&cf.addr, "addr", "127.0.0.1:8089", "Listen address")
		fs.DurationVar(&cf.rateLimit, "rate-limit", 0, "Answer 429 to a key sending requests closer together than this")
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if name == "mock" {
		return serveMock(ctx, cf.addr, cf.rateLimit, cfg.Debug)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	switch name {
	case "login":
		return a.login(ctx, out, cf)
	case "logout":
		if err := a.creds.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Logged out")
		return nil
	case "runs":
		return a.runs(ctx, out)
	}

	sess, err := a.session()
	if err != nil {
		return err
	}

	var body itchio.Body
	switch name {
	case "me":
		body, err = sess.Me(ctx)
		return printBody(out, body, err)
	case "games":
		if cf.local {
			return a.localGames(ctx, out, sess, (*library.Store).DevelopedGames)
		}
		body, err = sess.MyGames(ctx, nil)
		return printBody(out, body, err)
	case "keys":
		if cf.local {
			return a.localGames(ctx, out, sess, (*library.Store).OwnedGames)
		}
		body, err = sess.MyOwnedKeys(ctx, itchio.Data{"page": cf.page})
		return printBody(out, body, err)
	case "collections":
		if cf.id != 0 {
			body, err = sess.CollectionGames(ctx, cf.id, cf.page)
		} else {
			body, err = sess.MyCollections(ctx)
		}
		return printBody(out, body, err)
	case "search":
		if fs.NArg() != 1 {
			return errUsage
		}
		body, err = sess.Search(ctx, fs.Arg(0))
		return printBody(out, body, err)
	case "game":
		id, err := argID(fs)
		if err != nil {
			return err
		}
		game, err := a.lib.Game(ctx, sess, id)
		if err != nil {
			return err
		}
		return printJSON(out, game)
	case "uploads":
		id, err := argID(fs)
		if err != nil {
			return err
		}
		keyID, err := a.downloadKey(ctx, sess, id, cf.downloadKey)
		if err != nil {
			return err
		}
		uploads, err := a.lib.Uploads(ctx, sess, id, keyID)
		if err != nil {
			return err
		}
		return printJSON(out, uploads)
	case "download":
		id, err := argID(fs)
		if err != nil {
			return err
		}
		keyID := cf.downloadKey
		if keyID == 0 && cf.gameID != 0 {
			if a.lib.Store() == nil {
				return errors.New("-game needs a database (-db or ITCHDESK_DB_DSN)")
			}
			if keyID, err = a.downloadKey(ctx, sess, cf.gameID, 0); err != nil {
				return err
			}
		}
		link, err := a.lib.DownloadURL(ctx, sess, id, keyID)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, link)
		return nil
	case "sync":
		res, err := a.lib.Sync(ctx, sess)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Synced %s: %d games, %d purchases, %d collections (run %s)\n",
			res.Snapshot.User.Username, res.Run.Games, res.Run.OwnedKeys, res.Run.Collections, res.Run.ID)
		return nil
	}
	return errUsage
}

// app holds the wired components of one command run
type app struct {
	client  *itchio.Client
	creds   *credentials.Store
	lib     *library.Service
	sink    *diag.Async
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		creds: credentials.New(cfg.Credentials.File, cfg.Credentials.Secret),
	}

	var sinks diag.Multi
	if cfg.Debug {
		sinks = append(sinks, diag.NewStderr())
	}
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		sinks = append(sinks, diag.NewMetrics(registry))
		go serveMetrics(cfg.MetricsAddr, registry)
	}

	var opts []itchio.Option
	if len(sinks) > 0 {
		a.sink = diag.NewAsync(sinks, 256)
		opts = append(opts, itchio.WithSink(a.sink))
	}
	a.client = itchio.NewClient(&itchio.ClientConfig{
		APIRoot:  cfg.API.Root,
		Cooldown: cfg.API.Cooldown,
		Timeout:  cfg.API.Timeout,
	}, opts...)

	libOpts := []library.Option{library.WithGameTTL(cfg.Redis.TTL)}

	if cfg.Redis.Addr != "" {
		rc, err := cache.Dial(ctx, cfg.Redis.Addr)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		libOpts = append(libOpts, library.WithCache(rc))
	}

	if cfg.Database.DSN != "" {
		db, err := database.New(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(); err != nil {
			a.Close()
			return nil, err
		}
		libOpts = append(libOpts, library.WithStore(library.NewStore(db.DB)))
	}

	a.lib = library.New(libOpts...)
	return a, nil
}

// Close releases connections and flushes diagnostics
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("close: %v", err)
		}
	}
	if a.sink != nil {
		a.sink.Close()
		if n := a.sink.Dropped(); n > 0 {
			log.Printf("diagnostics: dropped %d records", n)
		}
	}
}

func (a *app) session() (*itchio.Session, error) {
	key, err := a.creds.Load()
	if err != nil {
		if errors.Is(err, credentials.ErrNoCredentials) {
			return nil, errors.New("not logged in, run 'itchdesk login' first")
		}
		return nil, err
	}
	return itchio.NewSession(a.client, key), nil
}

func (a *app) login(ctx context.Context, out io.Writer, cf cmdFlags) error {
	key := cf.key
	if key == "" {
		if cf.username == "" || cf.password == "" {
			return errors.New("login needs -key, or -username and -password")
		}
		body, err := a.client.LoginWithPassword(ctx, cf.username, cf.password)
		if err != nil {
			return err
		}
		var res itchio.LoginResult
		if err := body.Decode(&res); err != nil {
			return err
		}
		key = res.Key.Key
	}

	body, err := a.client.LoginKey(ctx, key)
	if err != nil {
		return err
	}
	var me itchio.MeResult
	if err := body.Decode(&me); err != nil {
		return err
	}

	if err := a.creds.Save(key); err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged in as %s\n", me.User.Username)
	return nil
}

func (a *app) runs(ctx context.Context, out io.Writer) error {
	store := a.lib.Store()
	if store == nil {
		return errors.New("runs needs a database (-db or ITCHDESK_DB_DSN)")
	}
	runs, err := store.Runs(ctx, &library.RunFilter{Limit: 20})
	if err != nil {
		return err
	}
	return printJSON(out, runs)
}

// localGames prints games of the logged in user read from the synced database
func (a *app) localGames(ctx context.Context, out io.Writer, sess *itchio.Session,
	list func(*library.Store, context.Context, int64) ([]itchio.Game, error)) error {
	store := a.lib.Store()
	if store == nil {
		return errors.New("-local needs a database (-db or ITCHDESK_DB_DSN)")
	}
	userID, err := a.userID(ctx, sess)
	if err != nil {
		return err
	}
	games, err := list(store, ctx, userID)
	if err != nil {
		return err
	}
	if games == nil {
		games = []itchio.Game{}
	}
	return printJSON(out, games)
}

func (a *app) userID(ctx context.Context, sess *itchio.Session) (int64, error) {
	body, err := sess.Me(ctx)
	if err != nil {
		return 0, err
	}
	var me itchio.MeResult
	if err := body.Decode(&me); err != nil {
		return 0, err
	}
	return me.User.ID, nil
}

// downloadKey returns explicit when set, else a key found in the synced library
func (a *app) downloadKey(ctx context.Context, sess *itchio.Session, gameID, explicit int64) (int64, error) {
	if explicit != 0 || a.lib.Store() == nil {
		return explicit, nil
	}
	userID, err := a.userID(ctx, sess)
	if err != nil {
		return 0, err
	}
	return a.lib.DownloadKey(ctx, userID, gameID)
}

func argID(fs *flag.FlagSet) (int64, error) {
	if fs.NArg() != 1 {
		return 0, errUsage
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", fs.Arg(0))
	}
	return id, nil
}

func printBody(out io.Writer, body itchio.Body, err error) error {
	if err != nil {
		return err
	}
	return printJSON(out, body)
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics: %v", err)
	}
}

func serveMock(ctx context.Context, addr string, rateLimit time.Duration, verbose bool) error {
	backend := mockapi.NewBackend()
	seeded := mockapi.Seed(backend)
	backend.SetRateLimit(rateLimit)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mockapi.New(backend).SetupRouter(verbose),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("Mock itch.io API on http://%s%s", addr, mockapi.APIPrefix)
	log.Printf("Demo login: %s / %s (key %s)", mockapi.DemoUsername, mockapi.DemoPassword, seeded.Key)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
