package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	consulsd "github.com/go-kit/kit/sd/consul"
	kitgrpc "github.com/go-kit/kit/transport/grpc"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/hashicorp/consul/api"
	"github.com/oklog/oklog/pkg/group"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twinj/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	libgorm "gorm.io/gorm"

	"github.com/ichigozero/gtdkit/taskd/authsvc/password"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authendpoint"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authservice"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authtransport"
	"github.com/ichigozero/gtdkit/taskd/config"
	"github.com/ichigozero/gtdkit/taskd/db"
	taskclient "github.com/ichigozero/gtdkit/taskd/tasksvc/client"
	taskgorm "github.com/ichigozero/gtdkit/taskd/tasksvc/db/gorm"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pb"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pkg/taskservice"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pkg/tasktransport"
	"github.com/ichigozero/gtdkit/taskd/tracing"
	userclient "github.com/ichigozero/gtdkit/taskd/usersvc/client"
	usergorm "github.com/ichigozero/gtdkit/taskd/usersvc/db/gorm"
	"github.com/ichigozero/gtdkit/taskd/usersvc/pkg/userendpoint"
	"github.com/ichigozero/gtdkit/taskd/usersvc/pkg/userservice"
	"github.com/ichigozero/gtdkit/taskd/usersvc/pkg/usertransport"
)

func main() {
	fs := flag.NewFlagSet("taskd", flag.ExitOnError)
	fs.Usage = usageFor(fs, os.Args[0]+" [flags]")

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	cfg, err := config.LoadServer(fs, os.Args[1:])
	if err != nil {
		level.Error(logger).Log("during", "config", "err", err)
		os.Exit(1)
	}

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.OTELEndpoint, cfg.ServiceName)
	if err != nil {
		level.Error(logger).Log("during", "tracing", "err", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	conn, err := db.Open(cfg.DB(), logger)
	if err != nil {
		level.Error(logger).Log("during", "db.Open", "err", err)
		os.Exit(1)
	}
	if err := db.Migrate(conn); err != nil {
		level.Error(logger).Log("during", "db.Migrate", "err", err)
		os.Exit(1)
	}

	var (
		userRepository = usergorm.NewUserRepository(conn)
		taskRepository = taskgorm.NewTaskRepository(conn)
	)

	hasher, err := password.New(cfg.Password())
	if err != nil {
		level.Error(logger).Log("during", "password.New", "err", err)
		os.Exit(1)
	}
	tokenizer, err := authservice.NewTokenizer(cfg.Token())
	if err != nil {
		level.Error(logger).Log("during", "authservice.NewTokenizer", "err", err)
		os.Exit(1)
	}

	fieldKeys := []string{"method", "error"}
	requestCount := func(subsystem string) *kitprometheus.Counter {
		return kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: "taskd",
			Subsystem: subsystem,
			Name:      "request_count",
			Help:      "Number of requests received.",
		}, fieldKeys)
	}
	requestLatency := func(subsystem string) *kitprometheus.Summary {
		return kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
			Namespace: "taskd",
			Subsystem: subsystem,
			Name:      "request_latency_seconds",
			Help:      "Total duration of requests in seconds.",
		}, fieldKeys)
	}

	var authService authservice.Service
	{
		authService, err = authservice.New(userRepository, hasher, tokenizer, logger)
		if err != nil {
			level.Error(logger).Log("during", "authservice.New", "err", err)
			os.Exit(1)
		}
		authService = authservice.InstrumentingMiddleware(requestCount("auth_service"), requestLatency("auth_service"))(authService)
	}

	var taskService taskservice.Service
	{
		taskService = taskservice.New(taskRepository, logger)
		taskService = taskservice.InstrumentingMiddleware(requestCount("task_service"), requestLatency("task_service"))(taskService)
		taskService = taskservice.TracingMiddleware(otel.Tracer("github.com/ichigozero/gtdkit/taskd/tasksvc"))(taskService)
	}

	var userService userservice.Service
	{
		userService = userservice.New(userRepository, taskRepository, hasher, logger)
		userService = userservice.InstrumentingMiddleware(requestCount("user_service"), requestLatency("user_service"))(userService)
	}

	var (
		authn         = authtransport.NewAuthenticator(tokenizer)
		authEndpoints = authendpoint.New(authService, logger)
		taskEndpoints = taskendpoint.New(taskService, authn, logger)
		userEndpoints = userendpoint.New(userService, authn, logger)
		grpcServer    = tasktransport.NewGRPCServer(taskEndpoints, logger)
	)

	r := mux.NewRouter()
	r.PathPrefix("/auth").Handler(authtransport.NewHTTPHandler(authEndpoints, logger))
	r.PathPrefix("/tasks").Handler(tasktransport.NewHTTPHandler(taskEndpoints, logger))
	r.PathPrefix("/users").Handler(usertransport.NewHTTPHandler(userEndpoints, logger))
	r.Methods("GET").Path("/metrics").Handler(promhttp.Handler())
	r.Methods("GET").Path("/health").Handler(healthHandler(conn))

	if cfg.ConsulAddr != "" {
		registrars, err := register(cfg, logger)
		if err != nil {
			level.Error(logger).Log("during", "consul", "err", err)
			os.Exit(1)
		}
		for _, registrar := range registrars {
			registrar.Register()
			defer registrar.Deregister()
		}
	}

	var g group.Group
	{
		httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			level.Error(logger).Log("transport", "HTTP", "during", "Listen", "err", err)
			os.Exit(1)
		}
		srv := &http.Server{
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		g.Add(func() error {
			logger.Log("transport", "HTTP", "addr", cfg.HTTPAddr)
			return srv.Serve(httpListener)
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		})
	}
	{
		grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			level.Error(logger).Log("transport", "gRPC", "during", "Listen", "err", err)
			os.Exit(1)
		}
		baseServer := grpc.NewServer(
			grpc.StatsHandler(otelgrpc.NewServerHandler()),
			grpc.UnaryInterceptor(kitgrpc.Interceptor),
		)
		pb.RegisterTaskSVCServer(baseServer, grpcServer)
		g.Add(func() error {
			logger.Log("transport", "gRPC", "addr", cfg.GRPCAddr)
			return baseServer.Serve(grpcListener)
		}, func(error) {
			baseServer.GracefulStop()
		})
	}
	{
		// This function just sits and waits for ctrl-C.
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

// register announces both listeners under cfg.ServiceName, told apart by the
// tags the discovery clients filter on.
func register(cfg config.Server, logger log.Logger) ([]*consulsd.Registrar, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = cfg.ConsulAddr
	consulClient, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, err
	}
	client := consulsd.NewClient(consulClient)

	httpHost, httpPort, err := hostPort(cfg.HTTPAddr)
	if err != nil {
		return nil, err
	}
	grpcHost, grpcPort, err := hostPort(cfg.GRPCAddr)
	if err != nil {
		return nil, err
	}

	// The auth and user clients share the HTTP registration.
	httpTags := []string{userclient.Tag}
	asrs := []*api.AgentServiceRegistration{
		{
			ID:      uuid.NewV4().String(),
			Name:    cfg.ServiceName,
			Tags:    httpTags,
			Address: httpHost,
			Port:    httpPort,
			Check: &api.AgentServiceCheck{
				HTTP:     fmt.Sprintf("http://%s:%d/health", httpHost, httpPort),
				Interval: "10s",
				Timeout:  "2s",
			},
		},
		{
			ID:      uuid.NewV4().String(),
			Name:    cfg.ServiceName,
			Tags:    []string{taskclient.Tag},
			Address: grpcHost,
			Port:    grpcPort,
			Check: &api.AgentServiceCheck{
				TCP:      net.JoinHostPort(grpcHost, strconv.Itoa(grpcPort)),
				Interval: "10s",
				Timeout:  "2s",
			},
		},
	}

	registrars := make([]*consulsd.Registrar, 0, len(asrs))
	for _, asr := range asrs {
		registrars = append(registrars, consulsd.NewRegistrar(client, asr, logger))
	}
	return registrars, nil
}

func hostPort(addr string) (string, int, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	if host == "" {
		host = "localhost"
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return "", 0, err
	}
	return host, p, nil
}

func healthHandler(conn *libgorm.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := conn.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}
