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

// Package remote serves an evaluator over gRPC and provides a client that
// implements evaluator.Evaluator against such a server.
//
// Rows travel as google.protobuf.Struct values, batches as a
// google.protobuf.ListValue of Structs. Errors carry grpc codes derived from
// their opterr kind so the client can restore the kind.
package remote

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/opterr"
)

const (
	serviceName          = "optdriver.Evaluator"
	evaluateMethod       = "/" + serviceName + "/Evaluate"
	evaluateDataMethod   = "/" + serviceName + "/EvaluateData"
	evaluatorServiceFile = "optdriver/evaluator.proto"
)

// evaluatorServer is the server side of the service.
type evaluatorServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EvaluateData(context.Context, *structpb.ListValue) (*structpb.ListValue, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*evaluatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
		{MethodName: "EvaluateData", Handler: evaluateDataHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: evaluatorServiceFile,
}

func evaluateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(evaluatorServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: evaluateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(evaluatorServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func evaluateDataHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.ListValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(evaluatorServer).EvaluateData(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: evaluateDataMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(evaluatorServer).EvaluateData(ctx, req.(*structpb.ListValue))
	}
	return interceptor(ctx, in, info, handler)
}

func recordToStruct(r dataset.Record) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]interface{}(r.Copy()))
	if err != nil {
		return nil, opterr.Wrap(opterr.Serialization, err, "encoding row")
	}
	return s, nil
}

func structToRecord(s *structpb.Struct) dataset.Record {
	return dataset.Record(s.AsMap()).Copy()
}

func tableToList(t *dataset.Table) (*structpb.ListValue, error) {
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, t.Len())}
	for _, r := range t.Rows() {
		s, err := recordToStruct(r)
		if err != nil {
			return nil, err
		}
		out.Values = append(out.Values, structpb.NewStructValue(s))
	}
	return out, nil
}

func listToRows(l *structpb.ListValue) ([]dataset.Record, error) {
	rows := make([]dataset.Record, len(l.GetValues()))
	for i, v := range l.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, opterr.Serializationf("row %d is not an object", i)
		}
		rows[i] = structToRecord(s)
	}
	return rows, nil
}
