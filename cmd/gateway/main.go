package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/hashicorp/consul/api"
	authclient "github.com/ichigozero/gtdkit/taskd/authsvc/client"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authtransport"
	"github.com/ichigozero/gtdkit/taskd/config"
	taskclient "github.com/ichigozero/gtdkit/taskd/tasksvc/client"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pkg/tasktransport"
	"github.com/ichigozero/gtdkit/taskd/tracing"
	userclient "github.com/ichigozero/gtdkit/taskd/usersvc/client"
	"github.com/ichigozero/gtdkit/taskd/usersvc/pkg/usertransport"
	"github.com/oklog/oklog/pkg/group"
)

// The gateway holds no secret: bearer tokens are forwarded and verified by
// the backend.
func main() {
	fs := flag.NewFlagSet("gateway", flag.ExitOnError)

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	cfg, err := config.LoadGateway(fs, os.Args[1:])
	if err != nil {
		level.Error(logger).Log("during", "config", "err", err)
		os.Exit(1)
	}

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.OTELEndpoint, "gateway")
	if err != nil {
		level.Error(logger).Log("during", "tracing", "err", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	var client consulsd.Client
	{
		consulConfig := api.DefaultConfig()
		consulConfig.Address = cfg.ConsulAddr
		consulClient, err := api.NewClient(consulConfig)
		if err != nil {
			level.Error(logger).Log("during", "consul", "err", err)
			os.Exit(1)
		}
		client = consulsd.NewClient(consulClient)
	}

	r := mux.NewRouter()
	{
		endpoints, err := authclient.New(client, cfg.Upstream, logger, cfg.RetryMax, cfg.RetryTimeout)
		if err != nil {
			level.Error(logger).Log("during", "authclient.New", "err", err)
			os.Exit(1)
		}
		r.PathPrefix("/auth").Handler(authtransport.NewHTTPHandler(endpoints, logger))
	}
	{
		endpoints, err := taskclient.New(client, cfg.Upstream, logger, cfg.RetryMax, cfg.RetryTimeout)
		if err != nil {
			level.Error(logger).Log("during", "taskclient.New", "err", err)
			os.Exit(1)
		}
		r.PathPrefix("/tasks").Handler(tasktransport.NewHTTPHandler(endpoints, logger))
	}
	{
		endpoints, err := userclient.New(client, cfg.Upstream, logger, cfg.RetryMax, cfg.RetryTimeout)
		if err != nil {
			level.Error(logger).Log("during", "userclient.New", "err", err)
			os.Exit(1)
		}
		r.PathPrefix("/users").Handler(usertransport.NewHTTPHandler(endpoints, logger))
	}
	r.Methods("GET").Path("/health").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var g group.Group
	{
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      15 * time.Second,
		}
		g.Add(func() error {
			logger.Log("transport", "HTTP", "addr", cfg.HTTPAddr)
			return srv.ListenAndServe()
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		})
	}
	{
		cancelInterrupt := make(chan struct{})
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancelInterrupt:
				return nil
			}
		}, func(error) {
			close(cancelInterrupt)
		})
	}
	logger.Log("exit", g.Run())
}
