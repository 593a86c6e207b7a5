// Copyright 2026 The optdriver Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package appmain runs an evaluator as a standalone service: a gRPC server
// for evaluation requests next to an HTTP server for telemetry and health
// probes.
package appmain

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"optdriver.dev/optdriver/internal/config"
	"optdriver.dev/optdriver/internal/telemetry"
	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/evaluator"
	"optdriver.dev/optdriver/pkg/evaluator/remote"
)

const shutdownTimeout = 5 * time.Second

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "optdriver",
		"component": "app.main",
	})
)

// Listen opens a listener; net.Listen in production.
type Listen func(network, address string) (net.Listener, error)

// App is a running evaluator service.
type App struct {
	grpcAddr string
	httpAddr string
	closers  []func() error
	g        *errgroup.Group
}

// RunApplication serves e until SIGINT or SIGTERM.
func RunApplication(cfg config.View, e evaluator.Evaluator) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(c)

	a, err := StartApplication(cfg, e, net.Listen)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"grpc": a.GRPCAddr(),
		"http": a.HTTPAddr(),
	}).Info("evaluator service started")

	<-c
	if err := a.Stop(); err != nil {
		return err
	}
	logger.Info("evaluator service stopped")
	return nil
}

// StartApplication binds the gRPC port evaluator.grpcport and the HTTP port
// evaluator.httpport and starts serving in the background. The HTTP port
// carries telemetry, health probes and a JSON gateway to the evaluator, with
// at most evaluator.httpMaxConnections open connections when that is set.
func StartApplication(cfg config.View, e evaluator.Evaluator, listen Listen) (*App, error) {
	a := &App{g: new(errgroup.Group)}
	gateway, err := remote.NewGateway(remote.NewServer(e))
	if err != nil {
		return nil, errors.Wrap(err, "cannot build evaluator gateway")
	}

	grpcLis, err := listen("tcp", fmt.Sprintf(":%d", cfg.GetInt("evaluator.grpcport")))
	if err != nil {
		return nil, errors.Wrap(err, "cannot listen for evaluator gRPC requests")
	}
	httpLis, err := listen("tcp", fmt.Sprintf(":%d", cfg.GetInt("evaluator.httpport")))
	if err != nil {
		grpcLis.Close()
		return nil, errors.Wrap(err, "cannot listen for evaluator HTTP requests")
	}
	a.grpcAddr = grpcLis.Addr().String()
	a.httpAddr = httpLis.Addr().String()
	if n := cfg.GetInt("evaluator.httpMaxConnections"); n > 0 {
		httpLis = netutil.LimitListener(httpLis, n)
	}

	mux := http.NewServeMux()
	closeTelemetry, err := telemetry.Setup(mux, cfg)
	if err != nil {
		grpcLis.Close()
		httpLis.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		closeTelemetry()
		return nil
	})
	mux.Handle(telemetry.HealthCheckEndpoint, telemetry.NewHealthCheck(map[string]telemetry.Probe{
		"evaluator": evaluatorProbe(e),
	}))
	mux.Handle("/v1/", gateway)

	gs := remote.NewGRPCServer(e)
	a.g.Go(func() error {
		if err := gs.Serve(grpcLis); err != nil && err != grpc.ErrServerStopped {
			return errors.Wrap(err, "evaluator gRPC server failed")
		}
		return nil
	})
	a.closers = append(a.closers, func() error {
		gs.GracefulStop()
		return nil
	})

	hs := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	a.g.Go(func() error {
		if err := hs.Serve(httpLis); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "evaluator HTTP server failed")
		}
		return nil
	})
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return hs.Shutdown(ctx)
	})
	return a, nil
}

// GRPCAddr is the address evaluation requests are served on.
func (a *App) GRPCAddr() string {
	return a.grpcAddr
}

// HTTPAddr is the address telemetry and health probes are served on.
func (a *App) HTTPAddr() string {
	return a.httpAddr
}

// Stop shuts the servers down in reverse start order and waits for them.
func (a *App) Stop() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	if err := a.g.Wait(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// evaluatorProbe passes an empty batch through e.
func evaluatorProbe(e evaluator.Evaluator) telemetry.Probe {
	return func(ctx context.Context) error {
		_, err := e.EvaluateData(ctx, dataset.New())
		return err
	}
}
