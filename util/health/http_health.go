package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CheckHTTPServer returns a Check that passes when a GET of address+healthPath
// answers with a 2xx status within two seconds.
func CheckHTTPServer(address string, healthPath string) func(context.Context, bool) (int, string, error) {
	url := strings.TrimSuffix(address, "/") + "/" + strings.TrimPrefix(healthPath, "/")

	client := &http.Client{
		Timeout: 2 * time.Second,
	}

	return func(ctx context.Context, _ bool) (int, string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return http.StatusServiceUnavailable, fmt.Sprintf("HTTP server at %s failed to create request", address), err
		}

		resp, err := client.Do(req)
		if err != nil {
			return http.StatusServiceUnavailable, fmt.Sprintf("HTTP server at %s not accepting connections", address), err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return http.StatusOK, fmt.Sprintf("HTTP server at %s is listening and accepting requests", address), nil
		}

		return http.StatusServiceUnavailable, fmt.Sprintf("HTTP server at %s returned status %d", address, resp.StatusCode), nil
	}
}
