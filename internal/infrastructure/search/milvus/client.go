// Package milvus accelerates neighbor counting for large reference libraries.
// Descriptor vectors are mirrored into a Milvus collection and each query runs
// a radius-bounded L2 range search as a prefilter; the surviving candidates
// are rescored client-side with the exact metric, so results match the scan
// backends bit for bit.
package milvus

import (
	"context"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"

	"github.com/moleculab/synthon-sieve/internal/config"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

const connectTimeout = 10 * time.Second

// Client wraps the Milvus SDK connection.
type Client struct {
	mc  client.Client
	log logging.Logger
}

// NewClient connects to the Milvus instance described by cfg and verifies the
// connection before returning.
func NewClient(ctx context.Context, cfg config.MilvusConfig, log logging.Logger) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New(errors.CodeInvalidParam, "milvus address is empty")
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	mc, err := client.NewClient(connectCtx, client.Config{Address: cfg.Addr})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeServiceUnavailable, "milvus connection failed")
	}

	log = log.Named("milvus")
	log.Info("milvus client connected", logging.String("addr", cfg.Addr))
	return &Client{mc: mc, log: log}, nil
}

// Raw exposes the underlying SDK client.
func (c *Client) Raw() client.Client { return c.mc }

// Close tears down the connection.
func (c *Client) Close() error {
	err := c.mc.Close()
	c.log.Info("milvus client closed")
	return err
}
