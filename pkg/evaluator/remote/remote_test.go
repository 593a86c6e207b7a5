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
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"optdriver.dev/optdriver/pkg/dataset"
	"optdriver.dev/optdriver/pkg/evaluator"
	"optdriver.dev/optdriver/pkg/opterr"
)

func startServer(t *testing.T, e evaluator.Evaluator) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(e)
	go func() {
		_ = gs.Serve(lis)
	}()
	t.Cleanup(gs.Stop)

	c, err := Dial(evaluator.Config{Address: "bufnet", MaxWorkers: 2},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRoundTrip(t *testing.T) {
	require := require.New(t)
	e, err := evaluator.FromConfig(evaluator.Config{Function: "sphere", MaxWorkers: 2}, evaluator.Builtin())
	require.NoError(err)
	c := startServer(t, e)
	ctx := context.Background()

	require.Equal(2, c.MaxWorkers())
	require.Equal(map[string]interface{}{"address": "bufnet", "max_workers": 2}, c.Params())

	out, err := c.Evaluate(ctx, dataset.Record{"x": 3.0})
	require.NoError(err)
	require.Equal(dataset.Record{"f": 9.0}, out)

	in, err := dataset.NewIndexed([]int{4, 5}, []dataset.Record{
		{"x": 1.0, "tag": "a", "v": []interface{}{1.0, 2.0}},
		{"x": 2.0, "tag": "b", "v": []interface{}{3.0}},
	})
	require.NoError(err)
	res, err := c.EvaluateData(ctx, in)
	require.NoError(err)
	require.Equal([]int{4, 5}, res.Index())
	require.Equal(1.0, res.Row(0)["f"])
	require.Equal(4.0, res.Row(1)["f"])
	require.Equal("b", res.Row(1)["tag"])
	require.Equal([]interface{}{1.0, 2.0}, res.Row(0)["v"])
	require.Equal(false, res.Row(0)[evaluator.ErrorColumn])
}

type failing struct {
	evaluator.Evaluator
	err error
}

func (f failing) EvaluateData(context.Context, *dataset.Table) (*dataset.Table, error) {
	return nil, f.err
}

func (f failing) Evaluate(context.Context, dataset.Record) (dataset.Record, error) {
	panic("evaluator crashed")
}

func TestErrorsKeepTheirKind(t *testing.T) {
	c := startServer(t, failing{err: opterr.Validationf("bad row")})
	_, err := c.EvaluateData(context.Background(), dataset.FromRecords(dataset.Record{"x": 1.0}))
	require.ErrorIs(t, err, opterr.ErrValidation)
	require.Contains(t, err.Error(), "bad row")

	_, err = c.Evaluate(context.Background(), dataset.Record{"x": 1.0})
	require.Error(t, err)
	require.Equal(t, opterr.Unknown, opterr.KindOf(err))
	require.Contains(t, err.Error(), "evaluator panicked")
}

func TestDialRequiresAddress(t *testing.T) {
	_, err := Dial(evaluator.Config{MaxWorkers: 1})
	require.ErrorIs(t, err, opterr.ErrConfiguration)
	_, err = Dial(evaluator.Config{Address: "localhost:1"})
	require.ErrorIs(t, err, opterr.ErrConfiguration)
}

func serveGateway(t *testing.T, e evaluator.Evaluator, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	h, err := NewGateway(NewServer(e))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func TestGateway(t *testing.T) {
	e, err := evaluator.FromConfig(evaluator.Config{Function: "sphere", MaxWorkers: 2}, evaluator.Builtin())
	require.NoError(t, err)

	rec := serveGateway(t, e, GatewayEvaluatePath, `{"x": 3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var one map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	require.Equal(t, map[string]interface{}{"f": 9.0}, one)

	rec = serveGateway(t, e, GatewayEvaluateDataPath, `[{"x": 1}, {"x": 2}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var many []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &many))
	require.Len(t, many, 2)
	require.Equal(t, 1.0, many[0]["f"])
	require.Equal(t, 4.0, many[1]["f"])
	require.Equal(t, false, many[1][evaluator.ErrorColumn])
}

func TestGatewayErrors(t *testing.T) {
	rec := serveGateway(t, failing{err: opterr.Validationf("bad row")}, GatewayEvaluateDataPath, `[{"x": 1}]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "bad row")

	rec = serveGateway(t, failing{}, GatewayEvaluateDataPath, `{"not": "a list"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serveGateway(t, failing{}, GatewayEvaluateDataPath, `[1, 2]`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
