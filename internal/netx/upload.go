// Package netx holds small HTTP helpers used by ibcolctl.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of a failed response is echoed into the error.
const maxErrorBody = 4 << 10

// UploadToSignedURL sends body to a storage signed URL. The headers returned
// alongside the URL must be sent unchanged, the signature covers them.
func UploadToSignedURL(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body io.Reader, size int64) error {
	if client == nil {
		client = http.DefaultClient
	}
	if method == "" {
		method = http.MethodPut
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}
