package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/knight/compiler"
	"github.com/chazu/knight/vm"
)

// Procedure names served over Connect, gRPC and gRPC-Web.
const (
	EvaluateProcedure    = "/knight.v1.EvaluationService/Evaluate"
	ListGlobalsProcedure = "/knight.v1.SessionService/ListGlobals"
	CloseProcedure       = "/knight.v1.SessionService/Close"
)

// SessionHeader carries the session id on requests and responses.
const SessionHeader = "Knight-Session"

// Error classes reported in EvalResult.ErrorKind.
const (
	ErrorKindParse    = "parse"
	ErrorKindRuntime  = "runtime"
	ErrorKindInternal = "internal"
)

// EvalResult is the outcome of one evaluation. A QUIT sets Exit instead of
// stopping the server; a parse or runtime failure sets Error.
type EvalResult struct {
	Value     string // debug form of the result, empty on failure
	Text      string // text form of the result
	Output    string // everything OUTPUT and DUMP wrote
	Exit      *int
	Error     string
	ErrorKind string
}

func (r *EvalResult) toStruct() (*structpb.Struct, error) {
	fields := map[string]any{
		"value":  r.Value,
		"text":   r.Text,
		"output": r.Output,
	}
	if r.Exit != nil {
		fields["exit"] = float64(*r.Exit)
	}
	if r.Error != "" {
		fields["error"] = r.Error
		fields["errorKind"] = r.ErrorKind
	}
	return structpb.NewStruct(fields)
}

func evalResultFromStruct(s *structpb.Struct) *EvalResult {
	f := s.GetFields()
	r := &EvalResult{
		Value:     f["value"].GetStringValue(),
		Text:      f["text"].GetStringValue(),
		Output:    f["output"].GetStringValue(),
		Error:     f["error"].GetStringValue(),
		ErrorKind: f["errorKind"].GetStringValue(),
	}
	if exit, ok := f["exit"]; ok {
		code := int(exit.GetNumberValue())
		r.Exit = &code
	}
	return r
}

// evaluate runs source on the session's interpreter. Called on the worker
// goroutine.
func evaluate(session *Session, in *vm.Interpreter, source string) *EvalResult {
	session.out.Reset()
	v, err := in.Run(source)
	if ferr := in.Flush(); ferr != nil && err == nil {
		err = ferr
	}

	result := &EvalResult{Output: session.out.String()}
	session.out.Reset()

	if code, ok := vm.ExitCode(err); ok {
		result.Exit = &code
		return result
	}
	if err != nil {
		result.Error = err.Error()
		switch {
		case compiler.IsParseError(err):
			result.ErrorKind = ErrorKindParse
		case vm.IsRuntimeError(err, 0):
			result.ErrorKind = ErrorKindRuntime
		default:
			result.ErrorKind = ErrorKindInternal
		}
		return result
	}

	result.Value = vm.Dump(v)
	if text, ok := vm.LiteralText(v); ok {
		result.Text = text
	}
	return result
}

// ---------------------------------------------------------------------------
// EvalService
// ---------------------------------------------------------------------------

// EvalService implements the EvaluationService and SessionService
// Connect/gRPC handlers.
type EvalService struct {
	sessions *SessionStore
}

// NewEvalService creates an EvalService.
func NewEvalService(sessions *SessionStore) *EvalService {
	return &EvalService{sessions: sessions}
}

// session resolves the session named by the request header, creating one
// when the header is absent.
func (s *EvalService) session(header string) (*Session, error) {
	session, created, ok := s.sessions.GetOrCreate(header)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", header))
	}
	if created {
		log.Info("session created", "session", session.ID)
	}
	return session, nil
}

// Evaluate parses and runs a Knight program in the caller's session.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	source := req.Msg.GetValue()
	if source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("source is required"))
	}

	session, err := s.session(req.Header().Get(SessionHeader))
	if err != nil {
		return nil, err
	}

	value, err := session.worker.Do(ctx, func(in *vm.Interpreter) (any, error) {
		return evaluate(session, in, source), nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, connect.NewError(connect.CodeCanceled, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	result := value.(*EvalResult)
	log.Debug("evaluated", "session", session.ID, "bytes", len(source), "error", result.ErrorKind)

	msg, err := result.toStruct()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	res := connect.NewResponse(msg)
	res.Header().Set(SessionHeader, session.ID)
	return res, nil
}

// ListGlobals returns the debug form of every global in the caller's
// session.
func (s *EvalService) ListGlobals(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	session, err := s.session(req.Header().Get(SessionHeader))
	if err != nil {
		return nil, err
	}

	value, err := session.worker.Do(ctx, func(in *vm.Interpreter) (any, error) {
		globals := make(map[string]any, in.Globals.Len())
		for _, name := range in.Globals.Names() {
			v, _ := in.Globals.Get(name)
			globals[name] = vm.Dump(v)
		}
		return globals, nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	msg, err := structpb.NewStruct(value.(map[string]any))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	res := connect.NewResponse(msg)
	res.Header().Set(SessionHeader, session.ID)
	return res, nil
}

// Close destroys the caller's session.
func (s *EvalService) Close(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[emptypb.Empty], error) {
	id := req.Header().Get(SessionHeader)
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s header is required", SessionHeader))
	}
	if !s.sessions.Destroy(id) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	log.Info("session closed", "session", id)
	return connect.NewResponse(&emptypb.Empty{}), nil
}
