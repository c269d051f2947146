// Package stow implements the STOW-RS upload boundary: multipart
// framing of encoded DICOM instances and the authenticated POST that
// submits them in one network transaction.
package stow

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const acceptHeader = "application/dicom+json, application/json;q=0.9, */*;q=0.1"

// Limits on how much of a response body ends up in a Result message.
const (
	successExcerptLimit = 300
	failureExcerptLimit = 900
)

// Endpoint describes the STOW-RS service to post to.
type Endpoint struct {
	URL       string
	Username  string
	Password  string
	VerifyTLS bool
	Timeout   time.Duration
}

// Client posts encoded DICOM instances to one STOW-RS endpoint.
type Client struct {
	endpoint   Endpoint
	httpClient *http.Client
}

// BaseTransport clones the default transport, disabling TLS
// verification when verifyTLS is false. Callers assembling their own
// *http.Client wrap or reuse it so the endpoint's TLS setting still
// applies.
func BaseTransport(verifyTLS bool) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !verifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return transport
}

// NewClient creates a Client with a default HTTP client honoring the
// endpoint's timeout and TLS verification settings.
func NewClient(endpoint Endpoint) *Client {
	return NewClientWithHTTPClient(endpoint, &http.Client{
		Timeout:   endpoint.Timeout,
		Transport: BaseTransport(endpoint.VerifyTLS),
	})
}

// NewClientWithHTTPClient creates a Client around a caller-supplied
// *http.Client. This allows passing an instrumented client; the caller
// is then responsible for its timeout and TLS configuration.
func NewClientWithHTTPClient(endpoint Endpoint, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: endpoint, httpClient: client}
}

// Store submits the encoded instances as a single multipart/related
// POST and interprets the acknowledgment. It never returns an upload
// failure as a Go error: transport problems, non-2xx statuses and
// failure tallies all come back inside the Result. The request is not
// retried; STOW-RS acknowledgments are not safe to repeat blindly.
func (c *Client) Store(ctx context.Context, encoded [][]byte) Result {
	body, contentType := BuildMultipart(encoded)
	url := strings.TrimRight(c.endpoint.URL, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Sent: len(encoded), Message: fmt.Sprintf("STOW EXC: %v", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", acceptHeader)
	if c.endpoint.Username != "" {
		req.SetBasicAuth(c.endpoint.Username, c.endpoint.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "STOW request failed", "url", url, "error", err)
		return Result{Sent: len(encoded), Message: fmt.Sprintf("STOW EXC: %v", err)}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		respBody = nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.ErrorContext(ctx, "STOW returned non-2xx status",
			"url", url, "statusCode", resp.StatusCode, "sent", len(encoded))
		return Result{
			Sent:    len(encoded),
			Message: fmt.Sprintf("STOW ERR %d: %s", resp.StatusCode, truncate(string(respBody), failureExcerptLimit)),
		}
	}

	res := Result{OK: true, Sent: len(encoded)}
	detail, succeeded, failed, ok := parseAcknowledgment(respBody)
	if ok {
		res.Succeeded, res.Failed = succeeded, failed
	} else {
		// A malformed acknowledgment does not downgrade a 2xx
		// outcome; report a raw excerpt instead of counts.
		detail = truncate(string(respBody), successExcerptLimit)
	}
	res.Message = fmt.Sprintf("STOW OK %d (sent %d objects): %s", resp.StatusCode, len(encoded), detail)
	slog.InfoContext(ctx, "STOW upload accepted",
		"url", url, "statusCode", resp.StatusCode, "sent", len(encoded),
		"succeeded", res.Succeeded, "failed", res.Failed)
	return res
}

// parseAcknowledgment extracts the Success/Failed tallies from a
// DICOM-JSON acknowledgment, which may be a single object or an array
// of objects (counts are then summed). ok is false when the body is
// not parseable in either shape.
func parseAcknowledgment(body []byte) (detail string, succeeded, failed int, ok bool) {
	var single storeResponse
	if err := json.Unmarshal(body, &single); err == nil {
		succeeded, failed = len(single.Success), len(single.Failed)
		detail = fmt.Sprintf("success %d, failed %d", succeeded, failed)
		if failed > 0 {
			reasons, _ := json.Marshal(single.Failed)
			detail += ", reasons: " + truncate(string(reasons), successExcerptLimit)
		}
		return detail, succeeded, failed, true
	}

	var many []storeResponse
	if err := json.Unmarshal(body, &many); err == nil {
		for _, r := range many {
			succeeded += len(r.Success)
			failed += len(r.Failed)
		}
		return fmt.Sprintf("success %d, failed %d", succeeded, failed), succeeded, failed, true
	}

	return "", 0, 0, false
}

// truncate cuts s to at most limit bytes, backing up to a rune
// boundary so multi-byte sequences are never split.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
