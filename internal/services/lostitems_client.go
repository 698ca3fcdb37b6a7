package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
)

// LostItemClient 通过 lost_found 服务的 HTTP 接口确认失物存在，auction 服务不直连其数据库。
type LostItemClient struct {
	baseURL string
	client  *http.Client
}

func NewLostItemClient(cfg config.AuctionConfig) *LostItemClient {
	base := cfg.LostItemsURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	timeout := cfg.UpstreamTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &LostItemClient{baseURL: base, client: &http.Client{Timeout: timeout}}
}

// Exists 返回 nil 表示失物存在；404 映射为 ErrInvalid，其它状态或网络错误映射为 ErrUpstream。
func (c *LostItemClient) Exists(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return newError(ErrUpstream, fmt.Sprintf("lost item check failed: %v", err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return newError(ErrInvalid, "lost item not found")
	default:
		return newError(ErrUpstream, fmt.Sprintf("lost item check failed: status %d", resp.StatusCode))
	}
}
