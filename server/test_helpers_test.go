package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func bg() context.Context {
	return context.Background()
}

// newTestServer starts a KnightServer behind httptest and stops both when
// the test ends.
func newTestServer(t *testing.T, opts ...ServerOption) (*KnightServer, *httptest.Server) {
	t.Helper()
	srv := New(append([]ServerOption{WithSweepInterval(time.Hour)}, opts...)...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return srv, ts
}

type testClients struct {
	evaluate *connect.Client[wrapperspb.StringValue, structpb.Struct]
	globals  *connect.Client[emptypb.Empty, structpb.Struct]
	close    *connect.Client[emptypb.Empty, emptypb.Empty]
}

func newTestClients(ts *httptest.Server, opts ...connect.ClientOption) *testClients {
	hc := http.DefaultClient
	return &testClients{
		evaluate: connect.NewClient[wrapperspb.StringValue, structpb.Struct](hc, ts.URL+EvaluateProcedure, opts...),
		globals:  connect.NewClient[emptypb.Empty, structpb.Struct](hc, ts.URL+ListGlobalsProcedure, opts...),
		close:    connect.NewClient[emptypb.Empty, emptypb.Empty](hc, ts.URL+CloseProcedure, opts...),
	}
}

// eval runs source in session (or a new session when empty) and returns the
// decoded result and the session id the server answered with.
func (c *testClients) eval(t *testing.T, session, source string) (*EvalResult, string) {
	t.Helper()
	req := connect.NewRequest(wrapperspb.String(source))
	if session != "" {
		req.Header().Set(SessionHeader, session)
	}
	resp, err := c.evaluate.CallUnary(bg(), req)
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", source, err)
	}
	return evalResultFromStruct(resp.Msg), resp.Header().Get(SessionHeader)
}
