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
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/plugin/ocgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/evaluator"
	"optdriver.dev/optdriver/pkg/opterr"
)

var (
	serverLogger = logrus.WithFields(logrus.Fields{
		"app":       "optdriver",
		"component": "evaluator.server",
	})
)

// Server exposes an evaluator over gRPC.
type Server struct {
	eval evaluator.Evaluator
}

// NewServer wraps e.
func NewServer(e evaluator.Evaluator) *Server {
	return &Server{eval: e}
}

// Register adds the evaluator service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// NewGRPCServer returns a grpc server with the evaluator service registered
// and the server options of ServerOptions.
func NewGRPCServer(e evaluator.Evaluator, extra ...grpc.ServerOption) *grpc.Server {
	gs := grpc.NewServer(append(ServerOptions(serverLogger), extra...)...)
	NewServer(e).Register(gs)
	return gs
}

// ServerOptions returns panic recovery, request logging, opencensus stats
// and keepalive enforcement for evaluator servers.
func ServerOptions(grpcLogger *logrus.Entry) []grpc.ServerOption {
	recoveryOpt := grpc_recovery.WithRecoveryHandler(func(p interface{}) error {
		grpcLogger.WithField("panic", p).Error("evaluator panicked")
		return status.Errorf(codes.Unknown, "evaluator panicked: %v", p)
	})
	ui := []grpc.UnaryServerInterceptor{
		grpc_recovery.UnaryServerInterceptor(recoveryOpt),
		grpc_logrus.UnaryServerInterceptor(grpcLogger),
	}
	return []grpc.ServerOption{
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(ui...)),
		grpc.StatsHandler(&ocgrpc.ServerHandler{}),
		grpc.KeepaliveEnforcementPolicy(
			keepalive.EnforcementPolicy{
				MinTime:             10 * time.Second,
				PermitWithoutStream: true,
			},
		),
	}
}

// Evaluate runs a single row.
func (s *Server) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	out, err := s.eval.Evaluate(ctx, structToRecord(in))
	if err != nil {
		return nil, opterr.ToStatus(err)
	}
	res, err := recordToStruct(out)
	return res, opterr.ToStatus(err)
}

// EvaluateData runs a batch of rows and returns one result per row.
func (s *Server) EvaluateData(ctx context.Context, in *structpb.ListValue) (*structpb.ListValue, error) {
	rows, err := listToRows(in)
	if err != nil {
		return nil, opterr.ToStatus(err)
	}
	out, err := s.eval.EvaluateData(ctx, dataset.FromRecords(rows...))
	if err != nil {
		return nil, opterr.ToStatus(err)
	}
	if out.Len() != len(rows) {
		return nil, status.Errorf(codes.Internal, "evaluator returned %d rows for %d inputs", out.Len(), len(rows))
	}
	res, err := tableToList(out)
	return res, opterr.ToStatus(err)
}
