// Command tsrpc-demo serves a small account API and writes its TypeScript
// client.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/broady/tsrpc/middleware"
	"github.com/broady/tsrpc/tsrpcgen"
)

type CLI struct {
	LogLevel slog.Level `help:"Log level (debug, info, warn, error)." default:"info" name:"log-level"`

	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Write the client and serve the API."`
	Gen     GenCmd     `cmd:"" help:"Write the TypeScript client and exit."`
	Version VersionCmd `cmd:"" help:"Print version information."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

type GenCmd struct {
	Out       string `arg:"" help:"Path of the generated client." type:"path"`
	ServerURL string `help:"Base URL the client calls." default:"http://localhost:8080" name:"server-url"`
}

func (c *GenCmd) Run(logger *slog.Logger) error {
	api := newAPI(newUserStore(), logger, prometheus.NewRegistry())
	return tsrpcgen.FromAPI(api).
		ServerURL(c.ServerURL).
		WithLogger(logger).
		ToFile(c.Out)
}

type ServeCmd struct {
	Addr        string   `help:"Address to listen on." default:":8080"`
	Out         string   `help:"Path of the generated client. Empty skips generation." default:"client.ts" type:"path"`
	ServerURL   string   `help:"Base URL the client calls." default:"http://localhost:8080" name:"server-url"`
	AllowOrigin []string `help:"Origins allowed to call the API." default:"http://localhost:3000" name:"allow-origin"`
	GzipMinSize int      `help:"Smallest response to compress, in bytes." default:"1024" name:"gzip-min-size"`
}

func (c *ServeCmd) Run(logger *slog.Logger) error {
	handler, err := c.handler(logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", c.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handler builds the API, writes the client and returns the root handler
// with /metrics mounted beside the endpoints.
func (c *ServeCmd) handler(logger *slog.Logger) (http.Handler, error) {
	metrics := prometheus.NewRegistry()
	api := newAPI(newUserStore(), logger, metrics)

	if c.Out != "" {
		err := tsrpcgen.FromAPI(api).
			ServerURL(c.ServerURL).
			WithLogger(logger).
			ToFile(c.Out)
		if err != nil {
			return nil, fmt.Errorf("write client: %w", err)
		}
	}

	gz, err := middleware.Compress(c.GzipMinSize)
	if err != nil {
		return nil, err
	}
	api.WithMiddleware(middleware.CORS(&middleware.CORSConfig{AllowOrigins: c.AllowOrigin})).
		WithMiddleware(gz)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", middleware.Handler(metrics))
	mux.Handle("/", api.Handler())
	return mux, nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("tsrpc-demo"),
		kong.Description("Demo account API with a generated TypeScript client."),
		kong.UsageOnError(),
	)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cli.LogLevel}))
	err := ctx.Run(logger)
	ctx.FatalIfErrorf(err)
}
