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

package remote

import (
	"context"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/plugin/ocgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/evaluator"
	"optdriver.dev/optdriver/pkg/opterr"
)

var (
	clientLogger = logrus.WithFields(logrus.Fields{
		"app":       "optdriver",
		"component": "evaluator.client",
	})
)

// Client is an evaluator.Evaluator backed by a remote evaluator service.
type Client struct {
	conn       *grpc.ClientConn
	address    string
	maxWorkers int
}

var _ evaluator.Evaluator = (*Client)(nil)

// Dial connects to the evaluator at cfg.Address. cfg.MaxWorkers is the batch
// size requested from the generator per step. extra options are appended
// to the defaults.
func Dial(cfg evaluator.Config, extra ...grpc.DialOption) (*Client, error) {
	if cfg.Address == "" {
		return nil, opterr.Configurationf("remote evaluator needs an address")
	}
	if cfg.MaxWorkers < 1 {
		return nil, opterr.Configurationf("remote evaluator max_workers must be positive, got %d", cfg.MaxWorkers)
	}
	conn, err := grpc.Dial(cfg.Address, append(DialOptions(clientLogger), extra...)...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial evaluator at %s", cfg.Address)
	}
	return &Client{conn: conn, address: cfg.Address, maxWorkers: cfg.MaxWorkers}, nil
}

// DialOptions returns the default client options: insecure transport,
// request logging, opencensus stats and keepalive.
func DialOptions(grpcLogger *logrus.Entry) []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(grpc_middleware.ChainUnaryClient(grpc_logrus.UnaryClientInterceptor(grpcLogger))),
		grpc.WithStatsHandler(&ocgrpc.ClientHandler{}),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                20 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	}
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// MaxWorkers implements evaluator.Evaluator.
func (c *Client) MaxWorkers() int {
	return c.maxWorkers
}

// Params implements evaluator.Evaluator.
func (c *Client) Params() map[string]interface{} {
	return evaluator.Config{Address: c.address, MaxWorkers: c.maxWorkers}.Params()
}

// Evaluate implements evaluator.Evaluator.
func (c *Client) Evaluate(ctx context.Context, in dataset.Record) (dataset.Record, error) {
	req, err := recordToStruct(in)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, evaluateMethod, req, resp); err != nil {
		return nil, opterr.FromStatus(err)
	}
	return structToRecord(resp), nil
}

// EvaluateData implements evaluator.Evaluator. Result rows keep the labels
// of in.
func (c *Client) EvaluateData(ctx context.Context, in *dataset.Table) (*dataset.Table, error) {
	req, err := tableToList(in)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, evaluateDataMethod, req, resp); err != nil {
		return nil, opterr.FromStatus(err)
	}
	rows, err := listToRows(resp)
	if err != nil {
		return nil, err
	}
	if len(rows) != in.Len() {
		return nil, opterr.Serializationf("remote evaluator returned %d rows for %d inputs", len(rows), in.Len())
	}
	return dataset.NewIndexed(in.Index(), rows)
}
