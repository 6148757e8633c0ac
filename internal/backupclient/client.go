package backupclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client дергает внешний контроллер бэкапов (pg_dump + выгрузка в облако живут там).
type Client struct {
	http *resty.Client
}

func New(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(5 * time.Minute),
	}
}

func (c *Client) do(ctx context.Context, path string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	body := strings.TrimSpace(resp.String())
	if resp.StatusCode()/100 != 2 {
		return "", fmt.Errorf("%s: http %d: %s", path, resp.StatusCode(), body)
	}
	return body, nil
}

// TriggerBackup запускает резервное копирование и возвращает ответ контроллера.
func (c *Client) TriggerBackup(ctx context.Context) (string, error) {
	return c.do(ctx, "/cgi-bin/backup", 2*time.Minute)
}

func (c *Client) Status(ctx context.Context) (string, error) {
	return c.do(ctx, "/cgi-bin/status", 10*time.Second)
}
