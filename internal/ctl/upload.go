package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibcol/portal/internal/filex"
	"github.com/ibcol/portal/internal/netx"
)

type uploadTarget struct {
	UploadURL string            `json:"uploadUrl"`
	FileRef   string            `json:"fileRef"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
}

type confirmation struct {
	FileRef     string `json:"fileRef"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

type apiError struct {
	Error string `json:"error"`
}

// uploader runs the three-step protocol: request a target, send the bytes
// to storage, confirm.
type uploader struct {
	server *url.URL
	client *http.Client
}

func newUploadCommand() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file through a signed URL and print its file reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := url.Parse(server)
			if err != nil || base.Scheme == "" || base.Host == "" {
				return fmt.Errorf("invalid --server %q", server)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			u := &uploader{server: base, client: &http.Client{}}
			res, err := u.upload(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "uploaded %s (%d bytes, %s)\n", args[0], res.Size, res.ContentType)
			fmt.Fprintln(cmd.OutOrStdout(), res.FileRef)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "portal base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall upload timeout")
	return cmd
}

func (u *uploader) upload(ctx context.Context, path string) (confirmation, error) {
	info, err := filex.Inspect(path)
	if err != nil {
		return confirmation{}, err
	}

	var target uploadTarget
	body, _ := json.Marshal(map[string]any{
		"name": info.Name,
		"type": info.ContentType,
		"size": info.Size,
	})
	if err := u.call(ctx, http.MethodPost, "files", bytes.NewReader(body), http.StatusCreated, &target); err != nil {
		return confirmation{}, fmt.Errorf("request upload target: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return confirmation{}, err
	}
	defer f.Close()

	if err := netx.UploadToSignedURL(ctx, u.client, target.Method, target.UploadURL, target.Headers, f, info.Size); err != nil {
		return confirmation{}, err
	}

	var res confirmation
	if err := u.call(ctx, http.MethodPost, "files/"+target.FileRef+"/confirm", nil, http.StatusOK, &res); err != nil {
		return confirmation{}, fmt.Errorf("confirm upload: %w", err)
	}
	return res, nil
}

func (u *uploader) call(ctx context.Context, method, path string, body io.Reader, want int, out any) error {
	endpoint := u.server.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e apiError
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return errors.New(resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
