// internal/pkg/redis/client.go
package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// Client 是 go-redis 的一层薄封装，统一创建与关闭逻辑。
type Client struct {
	rdb *goredis.Client
}

// NewClient 创建客户端并用 PING 验证连通性。
func NewClient(addr string) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", addr)
	}
	return &Client{rdb: rdb}, nil
}

// GetClient 暴露底层客户端给需要完整 API 的适配器。
func (c *Client) GetClient() *goredis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
