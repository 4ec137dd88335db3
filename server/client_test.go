package server

import (
	"net"
	"testing"
	"time"
)

// startGRPCServer serves srv on a loopback port and returns a connected
// gRPC client.
func startGRPCServer(t *testing.T, opts ...ServerOption) (*KnightServer, *Client) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	srv := New(append([]ServerOption{WithSweepInterval(time.Hour)}, opts...)...)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	client, err := Dial(l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		client.Close()
		if err := srv.Shutdown(bg()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return srv, client
}

func TestClient_EvaluateOverGRPC(t *testing.T) {
	_, client := startGRPCServer(t)

	result, err := client.Evaluate(bg(), "; = x 20 : OUTPUT + x 1")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Output != "21\n" || result.Value != "Null()" {
		t.Errorf("result = %+v", result)
	}
	if client.Session() == "" {
		t.Fatal("client did not record a session")
	}

	// The second call lands in the same session.
	result, err = client.Evaluate(bg(), "* x 2")
	if err != nil {
		t.Fatal(err)
	}
	if result.Value != "Number(40)" {
		t.Errorf("result = %+v", result)
	}
}

func TestClient_Globals(t *testing.T) {
	_, client := startGRPCServer(t)

	if _, err := client.Evaluate(bg(), "= greeting 'hi'"); err != nil {
		t.Fatal(err)
	}
	globals, err := client.Globals(bg())
	if err != nil {
		t.Fatal(err)
	}
	if len(globals) != 1 || globals["greeting"] != "String(hi)" {
		t.Errorf("globals = %v", globals)
	}
}

func TestClient_CloseSession(t *testing.T) {
	srv, client := startGRPCServer(t)

	if err := client.CloseSession(bg()); err != nil {
		t.Errorf("CloseSession without a session: %v", err)
	}

	if _, err := client.Evaluate(bg(), "= x 1"); err != nil {
		t.Fatal(err)
	}
	first := client.Session()
	if err := client.CloseSession(bg()); err != nil {
		t.Fatal(err)
	}
	if client.Session() != "" || srv.Sessions().Len() != 0 {
		t.Fatalf("session %q still open", first)
	}

	// A fresh session does not know x.
	result, err := client.Evaluate(bg(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if result.ErrorKind != ErrorKindRuntime {
		t.Errorf("result = %+v", result)
	}
	if client.Session() == first {
		t.Error("closed session id was reused")
	}
}

func TestClient_ReportsQuit(t *testing.T) {
	_, client := startGRPCServer(t)

	result, err := client.Evaluate(bg(), "QUIT 4")
	if err != nil {
		t.Fatal(err)
	}
	if result.Exit == nil || *result.Exit != 4 {
		t.Errorf("exit = %v, want 4", result.Exit)
	}
}
