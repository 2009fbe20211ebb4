package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Comcast/xcall/config"
	"github.com/Comcast/xcall/core"
	"github.com/Comcast/xcall/interpreters"
	"github.com/Comcast/xcall/interpreters/goja"
	"github.com/Comcast/xcall/sio"
	"github.com/Comcast/xcall/storage"
	"github.com/Comcast/xcall/storage/bolt"
	"github.com/Comcast/xcall/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveFlags struct {
	runtime    string
	codec      string
	store      string
	libraryDir string
	preload    []string
	maxDepth   int
	stdio      bool
	render     string
	tcp        string
	framed     bool
	ws         string
	wsPath     string
	http       string
	mqtt       string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an interpreter over the configured couplings",
	Long: `Serves one interpreter, with one reference cache, over every configured
coupling at once.  Flags override the configuration file.  Without any
coupling, serve reads requests from stdin.

Example:
  xcall serve --preload file://counter.js --tcp :8081 --http :8080`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.runtime, "runtime", "goja", "Host runtime")
	f.StringVar(&serveFlags.codec, "codec", "json", "Wire codec (json or cbor)")
	f.StringVar(&serveFlags.store, "store", "", "BoltDB library store (default in-memory)")
	f.StringVar(&serveFlags.libraryDir, "lib-dir", ".", "Base directory for file:// libraries")
	f.StringSliceVar(&serveFlags.preload, "preload", nil, "Libraries to load before serving")
	f.IntVar(&serveFlags.maxDepth, "max-depth", 64, "Maximum command nesting")
	f.BoolVar(&serveFlags.stdio, "stdio", false, "Serve stdin/stdout")
	f.StringVar(&serveFlags.render, "render", "json", "Stdio render mode (json, prettyjson, yaml)")
	f.StringVar(&serveFlags.tcp, "tcp", "", "TCP address")
	f.BoolVar(&serveFlags.framed, "framed", false, "Length-prefixed frames on TCP")
	f.StringVar(&serveFlags.ws, "ws", "", "WebSocket address")
	f.StringVar(&serveFlags.wsPath, "ws-path", "/ws", "WebSocket path")
	f.StringVar(&serveFlags.http, "http", "", "HTTP address")
	f.StringVar(&serveFlags.mqtt, "mqtt", "", "MQTT broker URL")
}

// loadConfig reads the config file (if any) and then applies the
// flags that were given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, err
		}
		// Validation waits until the flags are in.
		if err = cfg.Parse(filepath.Ext(configFile), data); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", configFile, err)
		}
	}

	f := cmd.Flags()
	if f.Changed("runtime") {
		cfg.Runtime = serveFlags.runtime
	}
	if f.Changed("codec") {
		cfg.Codec = serveFlags.codec
	}
	if f.Changed("store") {
		cfg.Store = serveFlags.store
	}
	if f.Changed("lib-dir") {
		cfg.LibraryDir = serveFlags.libraryDir
	}
	if f.Changed("preload") {
		cfg.Preload = serveFlags.preload
	}
	if f.Changed("max-depth") {
		cfg.MaxDepth = serveFlags.maxDepth
	}
	if f.Changed("stdio") || f.Changed("render") {
		cfg.Stdio = &config.Stdio{Render: serveFlags.render}
	}
	if f.Changed("tcp") {
		cfg.TCP = &config.TCP{Addr: serveFlags.tcp, Framed: serveFlags.framed}
	}
	if f.Changed("ws") {
		cfg.WebSocket = &config.WebSocket{Addr: serveFlags.ws, Path: serveFlags.wsPath}
	}
	if f.Changed("http") {
		cfg.HTTP = &config.HTTP{Addr: serveFlags.http}
	}
	if f.Changed("mqtt") {
		m := config.DefaultMQTT()
		m.Broker = serveFlags.mqtt
		cfg.MQTT = m
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// service is an Interpreter and its couplings.
type service struct {
	Store       storage.Store
	Cache       *core.Cache
	Transmitter *sio.Transmitter
	Couplings   []sio.Coupling

	logger *zap.Logger
}

func openStore(ctx context.Context, filename string) (storage.Store, error) {
	var s storage.Store = storage.NewMemStore()
	if filename != "" {
		b, err := bolt.NewStore(filename)
		if err != nil {
			return nil, err
		}
		s = b
	}
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// newService builds a service.  The stdio coupling, if configured,
// uses in and out.
func newService(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *zap.Logger) (*service, error) {
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	s := &service{
		Store:  store,
		Cache:  core.NewCache(),
		logger: logger,
	}

	if err = s.init(ctx, cfg, in, out); err != nil {
		store.Close(ctx)
		return nil, err
	}

	return s, nil
}

func (s *service) init(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	rt, err := interpreters.Find(cfg.Runtime)
	if err != nil {
		return err
	}

	if g, is := rt.(*goja.Runtime); is {
		g.LibraryProvider = goja.MakeStoreLibraryProvider(s.Store,
			goja.MakeFileLibraryProvider(cfg.LibraryDir))
		for _, name := range cfg.Preload {
			if err = g.Require(ctx, name); err != nil {
				return fmt.Errorf("preload: %w", err)
			}
		}
	} else if 0 < len(cfg.Preload) {
		return fmt.Errorf("runtime '%s' can't preload libraries", cfg.Runtime)
	}

	codec, err := sio.FindCodec(cfg.Codec)
	if err != nil {
		return err
	}

	i := core.NewInterpreter(rt, s.Cache)
	i.MaxDepth = cfg.MaxDepth
	i.Logger = s.logger

	t := sio.NewTransmitter(i, codec, s.logger)
	s.Transmitter = t

	if c := cfg.Stdio; c != nil {
		stdio := sio.NewStdio(t, c.Render)
		stdio.In, stdio.Out = in, out
		s.Couplings = append(s.Couplings, stdio)
	}
	if c := cfg.TCP; c != nil {
		s.Couplings = append(s.Couplings, sio.NewTCP(t, c.Addr, c.Framed))
	}
	if c := cfg.WebSocket; c != nil {
		s.Couplings = append(s.Couplings, sio.NewWebSocket(t, c.Addr, c.Path))
	}
	if c := cfg.HTTP; c != nil {
		s.Couplings = append(s.Couplings, sio.NewHTTP(t, c.Addr))
	}
	if c := cfg.MQTT; c != nil {
		m := sio.NewMQTT(t)
		m.Broker = c.Broker
		m.ClientID = c.ClientID
		m.Username = c.Username
		m.Password = c.Password
		m.RequestTopic = c.RequestTopic
		m.ReplyTopic = c.ReplyTopic
		m.QoS = c.QoS
		m.CleanSession = c.CleanSession
		m.KeepAlive = secs(c.KeepAlive)
		s.Couplings = append(s.Couplings, m)
	}

	return nil
}

// Run starts every coupling and serves until ctx is done or any
// coupling stops serving.
func (s *service) Run(ctx context.Context) error {
	var started []sio.Coupling
	defer func() {
		for _, c := range started {
			if err := c.Stop(context.Background()); err != nil {
				s.logger.Warn("stop", zap.String("coupling", c.Name()), zap.Error(err))
			}
		}
	}()

	for _, c := range s.Couplings {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.Name(), err)
		}
		started = append(started, c)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range started {
		c := c
		g.Go(func() error {
			defer cancel()
			if err := c.Serve(ctx); err != nil {
				return fmt.Errorf("%s: %w", c.Name(), err)
			}
			s.logger.Info("coupling done", zap.String("coupling", c.Name()))
			return nil
		})
	}

	return g.Wait()
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Close drops every cached reference and closes the store.
func (s *service) Close(ctx context.Context) error {
	if n := s.Cache.Clear(); 0 < n {
		s.logger.Info("released references", zap.Int("count", n))
	}
	return s.Store.Close(ctx)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if (cfg.Verbose || cfg.Development) && !verbose && !development {
		if logger, err = util.NewLogger(cfg.Verbose, cfg.Development); err != nil {
			return err
		}
		util.SetLogger(logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newService(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	return s.Run(ctx)
}
