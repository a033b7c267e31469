package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

const namespaceEnsureTimeout = 10 * time.Second

// NewClient dials the research task queue's cluster. It returns (nil, nil)
// when no address is configured. Dial failures are retried with backoff
// until cfg.DialMaxWait has passed or ctx is done.
func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (client.Client, error) {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = logger.Nop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Address == "" {
		log.Warn("TEMPORAL_ADDRESS not set; Temporal disabled")
		return nil, nil
	}
	opts, err := clientOptions(log, cfg, true)
	if err != nil {
		return nil, err
	}

	var c client.Client
	err = retry(ctx, cfg, cfg.DialMaxWait, func(attempt int) (bool, error) {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		dialed, err := client.DialContext(dialCtx, opts)
		if err != nil {
			log.Warn("Temporal not reachable", "address", cfg.Address, "attempt", attempt, "error", err)
			return true, err
		}
		if attempt > 1 {
			log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
		}
		c = dialed
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("temporal dial %s/%s: %w", cfg.Address, cfg.Namespace, err)
	}

	if cfg.AutoRegisterNamespace {
		if err := EnsureNamespace(ctx, cfg, log); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// EnsureNamespace registers cfg.Namespace when the cluster does not know it.
// Local and self-hosted clusters only; managed namespaces are provisioned
// out of band.
func EnsureNamespace(ctx context.Context, cfg Config, log *logger.Logger) error {
	cfg = cfg.WithDefaults()
	if cfg.Address == "" || cfg.Namespace == "" {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, namespaceEnsureTimeout)
	defer cancel()

	// No namespace header on this client, so it can create one.
	opts, err := clientOptions(log, cfg, false)
	if err != nil {
		return err
	}
	ns, err := client.NewNamespaceClient(opts)
	if err != nil {
		return fmt.Errorf("temporal namespace client: %w", err)
	}
	defer ns.Close()

	return retry(ctx, cfg, namespaceEnsureTimeout, func(attempt int) (bool, error) {
		_, err := ns.Describe(ctx, cfg.Namespace)
		if err == nil {
			return false, nil
		}
		var missing *serviceerror.NamespaceNotFound
		if !errors.As(err, &missing) {
			return isRetryableRPC(err), fmt.Errorf("describe namespace %s: %w", cfg.Namespace, err)
		}

		err = ns.Register(ctx, &workflowservice.RegisterNamespaceRequest{
			Namespace:                        cfg.Namespace,
			Description:                      "ideaforge research runs",
			WorkflowExecutionRetentionPeriod: durationpb.New(cfg.NamespaceRetention),
		})
		var exists *serviceerror.NamespaceAlreadyExists
		switch {
		case err == nil:
			log.Info("Registered Temporal namespace", "namespace", cfg.Namespace, "retention", cfg.NamespaceRetention.String())
			return false, nil
		case errors.As(err, &exists):
			return false, nil
		default:
			return isRetryableRPC(err), fmt.Errorf("register namespace %s: %w", cfg.Namespace, err)
		}
	})
}

// retry calls fn until it reports done, the budget is spent, or ctx ends.
// fn returns (again, err); again=false stops with err as the result.
func retry(ctx context.Context, cfg Config, budget time.Duration, fn func(attempt int) (bool, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.Now().Add(budget)
	for attempt := 1; ; attempt++ {
		again, err := fn(attempt)
		if err == nil || !again {
			return err
		}
		if budget <= 0 || time.Now().After(deadline) {
			return err
		}
		t := time.NewTimer(cfg.Backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}

func clientOptions(log *logger.Logger, cfg Config, withNamespace bool) (client.Options, error) {
	opts := client.Options{HostPort: cfg.Address, Logger: log}
	if withNamespace {
		opts.Namespace = cfg.Namespace
	}
	if cfg.mTLS() {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return client.Options{}, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}
	return opts, nil
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, errors.New("temporal tls: TEMPORAL_CLIENT_CERT_PATH and TEMPORAL_CLIENT_KEY_PATH must both be set")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load key pair: %w", err)
	}
	out := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if cfg.ClientCAPath == "" {
		return out, nil
	}
	pem, err := os.ReadFile(cfg.ClientCAPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: read CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("temporal tls: CA file has no certificates")
	}
	out.RootCAs = pool
	return out, nil
}

func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	}
	return false
}
