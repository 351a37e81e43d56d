package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/timetrackhq/bexio-auth/authorize"
	"github.com/timetrackhq/bexio-auth/bridge"
	"github.com/timetrackhq/bexio-auth/exchange"
	"github.com/timetrackhq/bexio-auth/flow"
	"github.com/timetrackhq/bexio-auth/flow/staterepo"
	"github.com/timetrackhq/bexio-auth/identity"
	"github.com/timetrackhq/bexio-auth/internal/config"
	"github.com/timetrackhq/bexio-auth/internal/metrics"
	"github.com/timetrackhq/bexio-auth/platform"
	"github.com/timetrackhq/bexio-auth/server"
)

func main() {
	_ = godotenv.Load()

	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	if err := config.Validate(c); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	displayAppname(c.GetAppName())

	endpoints, err := resolveEndpoints(c)
	if err != nil {
		return err
	}

	sessions, cleanup, err := newSessionRepo(c)
	if err != nil {
		return err
	}
	defer cleanup()

	resolver, err := platform.NewResolver(c.GetBaseURL(), server.RouteOAuthCallback, c.GetAppScheme())
	if err != nil {
		return fmt.Errorf("platform.NewResolver: %w", err)
	}

	controller, err := flow.NewController(flow.Deps{
		Resolver:  resolver,
		Builder:   authorize.NewBuilder(c.GetClientID(), endpoints.Endpoint, c.GetAllowedScopes(), c.GetDefaultScopes()),
		States:    staterepo.NewInMemoryRepo(c.GetFlowStateTTL()),
		Sessions:  sessions,
		Exchanger: exchange.NewClient(c.GetClientID(), c.GetClientSecret(), endpoints.Endpoint, exchange.WithTimeout(c.GetExchangeTimeout())),
		Extractor: identity.NewExtractor(endpoints.UserInfoURL),
		Metrics:   metrics.New(),
	})
	if err != nil {
		return fmt.Errorf("flow.NewController: %w", err)
	}

	httpHandler, err := server.New(c, controller, sessions)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: httpHandler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func resolveEndpoints(c config.Config) (exchange.Endpoints, error) {
	if !c.GetUseDiscovery() {
		return exchange.StaticEndpoints(c.GetAuthURL(), c.GetTokenURL(), c.GetUserInfoURL()), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	endpoints, err := exchange.Discover(ctx, c.GetIssuerURL())
	if err != nil {
		return exchange.Endpoints{}, fmt.Errorf("exchange.Discover: %w", err)
	}
	return endpoints, nil
}

// newSessionRepo selects the relay session backend. The in-memory backend
// needs a background sweeper; Redis expires keys itself.
func newSessionRepo(c config.Config) (bridge.Repo, func(), error) {
	switch c.GetBridgeBackend() {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("redis.Ping: %w", err)
		}
		return bridge.NewRedisRepo(client, c.GetSessionTTL()), func() { _ = client.Close() }, nil

	default:
		repo := bridge.NewInMemoryRepo(c.GetSessionTTL())
		sweeper := bridge.NewSweeper(repo, c.GetSweepInterval())
		sweeper.Start()
		return repo, sweeper.Stop, nil
	}
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
