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
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Gateway routes.
const (
	GatewayEvaluatePath     = "/v1/evaluate"
	GatewayEvaluateDataPath = "/v1/evaluate_data"
)

// NewGateway returns an HTTP handler exposing s as JSON:
//
//	POST /v1/evaluate       {"x": 1.0}                 -> result object
//	POST /v1/evaluate_data  [{"x": 1.0}, {"x": 2.0}]   -> array of result objects
//
// Errors are rendered by the gateway with the HTTP status matching their
// grpc code.
func NewGateway(s *Server) (http.Handler, error) {
	mux := runtime.NewServeMux()
	err := mux.HandlePath(http.MethodPost, GatewayEvaluatePath, func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		in := new(structpb.Struct)
		forward(mux, w, r, in, func(ctx context.Context) (proto.Message, error) {
			return s.Evaluate(ctx, in)
		})
	})
	if err != nil {
		return nil, err
	}
	err = mux.HandlePath(http.MethodPost, GatewayEvaluateDataPath, func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		in := new(structpb.ListValue)
		forward(mux, w, r, in, func(ctx context.Context) (proto.Message, error) {
			return s.EvaluateData(ctx, in)
		})
	})
	if err != nil {
		return nil, err
	}
	return mux, nil
}

// forward decodes the request body into in, runs call and writes its
// result with the marshaler negotiated for the request.
func forward(mux *runtime.ServeMux, w http.ResponseWriter, r *http.Request, in proto.Message, call func(context.Context) (proto.Message, error)) {
	ctx := r.Context()
	inbound, outbound := runtime.MarshalerForRequest(mux, r)
	if err := inbound.NewDecoder(r.Body).Decode(in); err != nil {
		runtime.HTTPError(ctx, mux, outbound, w, r, status.Errorf(codes.InvalidArgument, "cannot decode request: %v", err))
		return
	}
	out, err := call(ctx)
	if err != nil {
		runtime.HTTPError(ctx, mux, outbound, w, r, err)
		return
	}
	b, err := outbound.Marshal(out)
	if err != nil {
		runtime.HTTPError(ctx, mux, outbound, w, r, status.Errorf(codes.Internal, "cannot encode response: %v", err))
		return
	}
	w.Header().Set("Content-Type", outbound.ContentType(out))
	if _, err := w.Write(b); err != nil {
		serverLogger.WithError(err).Debug("cannot write gateway response")
	}
}
