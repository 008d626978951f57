package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vietddude/hookbridge/internal/metrics"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
)

// gatewaySendMethod is the full method name of the internal notification
// gateway's send RPC. Both sides use google.protobuf.Struct payloads, so no
// generated stubs are required here.
const gatewaySendMethod = "/notify.v1.Gateway/Send"

// GatewayNotifier delivers payloads to the internal notification gateway
// over gRPC. gRPC status codes from the gateway flow back raw so the
// classifier can map them.
type GatewayNotifier struct {
	name     string
	endpoint string
	conn     *grpc.ClientConn
}

// NewGatewayNotifier dials the gateway. https:// or :443 endpoints use TLS,
// anything else dials insecure (matching in-cluster deployments).
func NewGatewayNotifier(name, endpoint string) (*GatewayNotifier, error) {
	target := endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial notify gateway %s: %w", target, err)
	}

	return &GatewayNotifier{name: name, endpoint: endpoint, conn: conn}, nil
}

func (n *GatewayNotifier) Name() string { return n.name }

func (n *GatewayNotifier) Dependency() breaker.Dependency { return breaker.DepNotifyGateway }

// Deliver invokes the gateway send RPC with the payload as a Struct.
func (n *GatewayNotifier) Deliver(ctx context.Context, payload map[string]any) error {
	in, err := structpb.NewStruct(payload)
	if err != nil {
		return fmt.Errorf("payload not representable as struct: %w", err)
	}

	start := time.Now()
	out := &structpb.Struct{}
	err = n.conn.Invoke(ctx, gatewaySendMethod, in, out)
	metrics.DeliveryLatency.WithLabelValues(n.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DeliveryErrors.WithLabelValues(n.name, status.Code(err).String()).Inc()
	}
	return err
}

// Close tears down the gateway connection.
func (n *GatewayNotifier) Close() error {
	return n.conn.Close()
}
