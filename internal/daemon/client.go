package daemon

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/funvibe/given/internal/export"
)

// Client calls a resolution daemon.
type Client struct {
	conn grpc.ClientConnInterface
}

// Dial connects to the daemon at target without transport security.
func Dial(target string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn), conn, nil
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Resolve sends req and returns the daemon's report.
func (c *Client) Resolve(ctx context.Context, req *export.Request) (*export.Report, error) {
	in, err := req.Message()
	if err != nil {
		return nil, err
	}
	out, err := export.NewReportMessage()
	if err != nil {
		return nil, err
	}
	if err := c.conn.Invoke(ctx, ResolveMethod, in, out); err != nil {
		return nil, err
	}
	return export.FromMessage(out), nil
}
