// Package daemon serves resolution over gRPC. Each call analyzes the
// program description it carries in a fresh session and answers with the
// resolved graphs.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/funvibe/given/internal/analyzer"
	"github.com/funvibe/given/internal/config"
	"github.com/funvibe/given/internal/export"
	"github.com/funvibe/given/internal/incremental"
	"github.com/funvibe/given/internal/loader"
	"github.com/funvibe/given/internal/logging"
	"github.com/funvibe/given/internal/metrics"
	"github.com/funvibe/given/internal/pipeline"
)

const (
	ServiceName = "given.v1.Resolver"
	// ResolveMethod is the full method name of the unary Resolve call.
	ResolveMethod = "/" + ServiceName + "/Resolve"
)

// defaultPath names programs sent without a path.
const defaultPath = "request" + config.ProgramFileExt

// Server implements the given.v1.Resolver service.
type Server struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Recorder
	// Store, when set, records the results of every call.
	Store *incremental.Store

	grpc *grpc.Server
}

// NewServer creates a server using cfg for the settings a request does not
// carry. The protocol schema is parsed here so that a broken schema fails
// at startup rather than on the first call.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if _, err := export.LoadSchema(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{Config: cfg, Logger: logging.OrDiscard(logger)}
	s.grpc = grpc.NewServer()
	s.Register(s.grpc)
	return s, nil
}

// Register adds the resolver service to gs.
func (s *Server) Register(gs grpc.ServiceRegistrar) {
	gs.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "Resolve",
			Handler:    resolveHandler,
		}},
		Streams:  []grpc.StreamDesc{},
		Metadata: export.SchemaFile,
	}, s)
}

func resolveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	s := srv.(*Server)
	in, err := export.NewRequestMessage()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if err := dec(in); err != nil {
		return nil, err
	}
	handle := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.handle(ctx, req.(*dynamicpb.Message))
	}
	if interceptor == nil {
		return handle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: ResolveMethod}
	return interceptor(ctx, in, info, handle)
}

func (s *Server) handle(ctx context.Context, in *dynamicpb.Message) (*dynamicpb.Message, error) {
	report, err := s.Resolve(ctx, export.RequestFromMessage(in))
	if err != nil {
		return nil, err
	}
	out, err := report.Message()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Resolve analyzes the program of req. A program that cannot be loaded is
// an InvalidArgument error; unresolved call sites are part of the report.
func (s *Server) Resolve(ctx context.Context, req *export.Request) (*export.Report, error) {
	if len(req.Program) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty program")
	}
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	path := req.Path
	if path == "" {
		path = defaultPath
	}

	cfg := *s.Config
	if len(req.Roots) > 0 {
		cfg.Roots = req.Roots
	}
	cfg.Imports = append(append([]string(nil), s.Config.Imports...), req.Imports...)
	for _, imp := range req.Imports {
		if err := config.ValidateImportPattern(imp); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}

	started := time.Now()
	processors := []pipeline.Processor{&loader.LoaderProcessor{}, &analyzer.AnalyzerProcessor{}}
	if s.Store != nil {
		processors = append(processors, &incremental.StoreProcessor{Store: s.Store})
	}
	pctx := pipeline.New(processors...).Run(&pipeline.PipelineContext{
		FilePath:   path,
		SourceCode: req.Program,
		Config:     &cfg,
		Logger:     s.Logger,
		Metrics:    s.Metrics,
	})
	if len(pctx.Errors) > 0 {
		msgs := make([]string, len(pctx.Errors))
		for i, err := range pctx.Errors {
			msgs[i] = err.Error()
		}
		s.Logger.Info("request rejected", "path", path, "error", msgs[0])
		return nil, status.Error(codes.InvalidArgument, strings.Join(msgs, "; "))
	}

	report := export.FromGraphs(pctx.SessionID, pctx.Graphs, pctx.Diagnostics)
	s.Logger.Info("request resolved",
		"session", report.Session,
		"path", path,
		"sites", len(report.Graphs),
		"diagnostics", len(report.Diagnostics),
		"elapsed", time.Since(started))
	return report, nil
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.Logger.Info("serving", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// ListenAndServe listens on the TCP address addr and serves.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Stop waits for pending calls and stops the server.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}
