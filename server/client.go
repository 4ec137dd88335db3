package server

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client evaluates programs on a remote KnightServer over gRPC. All calls
// made through one Client share a session, so globals persist between them.
type Client struct {
	conn *grpc.ClientConn

	mu      sync.Mutex
	session string
}

// Dial connects to a KnightServer at target ("host:port"). The connection
// is plaintext HTTP/2.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("server: dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Session returns the id of the client's session, or "" before the first
// call.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// invoke calls method with the session header attached and records the
// session id the server answers with.
func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	if id := c.Session(); id != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, strings.ToLower(SessionHeader), id)
	}

	var header metadata.MD
	if err := c.conn.Invoke(ctx, method, req, resp, grpc.Header(&header)); err != nil {
		return err
	}
	if ids := header.Get(SessionHeader); len(ids) > 0 && ids[0] != "" {
		c.mu.Lock()
		c.session = ids[0]
		c.mu.Unlock()
	}
	return nil
}

// Evaluate runs source in the client's session.
func (c *Client) Evaluate(ctx context.Context, source string) (*EvalResult, error) {
	resp := &structpb.Struct{}
	if err := c.invoke(ctx, EvaluateProcedure, wrapperspb.String(source), resp); err != nil {
		return nil, err
	}
	return evalResultFromStruct(resp), nil
}

// Globals returns the debug form of every global in the client's session.
func (c *Client) Globals(ctx context.Context) (map[string]string, error) {
	resp := &structpb.Struct{}
	if err := c.invoke(ctx, ListGlobalsProcedure, &emptypb.Empty{}, resp); err != nil {
		return nil, err
	}
	globals := make(map[string]string, len(resp.GetFields()))
	for name, v := range resp.GetFields() {
		globals[name] = v.GetStringValue()
	}
	return globals, nil
}

// CloseSession ends the client's session on the server. The next call
// starts a new one.
func (c *Client) CloseSession(ctx context.Context) error {
	if c.Session() == "" {
		return nil
	}
	if err := c.invoke(ctx, CloseProcedure, &emptypb.Empty{}, &emptypb.Empty{}); err != nil {
		return err
	}
	c.mu.Lock()
	c.session = ""
	c.mu.Unlock()
	return nil
}

// Close closes the connection. It does not end the session.
func (c *Client) Close() error {
	return c.conn.Close()
}
