// Command meshpartsd serves a Session to a host UI over websockets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	meshparts "github.com/gekko3d/meshparts"
	"github.com/gekko3d/meshparts/meshrt/core"
	"github.com/gekko3d/meshparts/meshrt/procedural"
	"github.com/gekko3d/meshparts/transport/ws"
)

func main() {
	configPath := flag.String("config", "", "TOML config file, reloaded on change")
	scenePath := flag.String("scene", "", "scene JSON file; the demo car is used when empty")
	addr := flag.String("addr", "", "listen address, overrides [server] addr")
	flag.Parse()

	if err := run(*configPath, *scenePath, *addr); err != nil {
		fmt.Fprintln(os.Stderr, "meshpartsd:", err)
		os.Exit(1)
	}
}

func run(configPath, scenePath, addr string) error {
	cfg := meshparts.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = meshparts.LoadConfig(configPath); err != nil {
			return err
		}
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	log := meshparts.NewDefaultLogger(cfg.Log.Prefix, cfg.Log.Debug)

	var (
		scene *core.Scene
		cam   core.Camera
		err   error
	)
	if scenePath != "" {
		scene, cam, err = meshparts.LoadSceneFile(scenePath, log)
	} else {
		scene, cam, err = meshparts.DemoScene(procedural.CarOptions{Resolution: 0.05, Merge: true})
	}
	if err != nil {
		return err
	}
	sess, err := meshparts.NewSession(cfg, log)
	if err != nil {
		return err
	}
	sess.Load(scene, cam)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := ws.NewServer(sess, cfg.Server.AllowedOrigins, log.Named("ws"))
	if configPath != "" {
		err := meshparts.WatchConfig(ctx, configPath, log.Named("config"), func(c meshparts.Config) {
			srv.Submit(func(s *meshparts.Session) {
				if err := s.Reconfigure(c); err != nil {
					log.Warnf("config not applied: %v", err)
				}
			})
		})
		if err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Server.Path, srv.HandleWS)
	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdown)
	}()

	log.Infof("listening on %s%s", cfg.Server.Addr, cfg.Server.Path)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stop()
		<-runErr
		return err
	}
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
