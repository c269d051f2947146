package stow

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func testClient(url string) *Client {
	return NewClient(Endpoint{URL: url, VerifyTLS: true, Timeout: 5 * time.Second})
}

func TestStoreSuccessWithAcknowledgment(t *testing.T) {
	var gotContentType, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "Content-Location: instance-1") {
			t.Error("request body is not the multipart payload")
		}
		w.Header().Set("Content-Type", "application/dicom+json")
		w.Write([]byte(`{"Success":["a","b"],"Failed":[]}`))
	}))
	defer srv.Close()

	res := testClient(srv.URL).Store(context.Background(), [][]byte{[]byte("x"), []byte("y")})
	if !res.OK {
		t.Fatalf("expected success, got %q", res.Message)
	}
	if res.Succeeded != 2 || res.Failed != 0 {
		t.Fatalf("tallies = %d/%d", res.Succeeded, res.Failed)
	}
	if !strings.Contains(res.Message, "success 2, failed 0") {
		t.Fatalf("message %q missing tallies", res.Message)
	}
	if res.Sent != 2 {
		t.Fatalf("Sent = %d", res.Sent)
	}
	if !strings.HasPrefix(gotContentType, `multipart/related; type="application/dicom"; boundary=`) {
		t.Fatalf("Content-Type = %q", gotContentType)
	}
	if gotAccept != acceptHeader {
		t.Fatalf("Accept = %q", gotAccept)
	}
}

func TestStoreSumsArrayAcknowledgments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"Success":["a"],"Failed":["x"]},{"Success":["b","c"],"Failed":[]}]`))
	}))
	defer srv.Close()

	res := testClient(srv.URL).Store(context.Background(), [][]byte{[]byte("x")})
	if !res.OK {
		t.Fatalf("expected success, got %q", res.Message)
	}
	if res.Succeeded != 3 || res.Failed != 1 {
		t.Fatalf("tallies = %d/%d", res.Succeeded, res.Failed)
	}
}

func TestStoreUnparseableBodyKeepsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>stored</html>"))
	}))
	defer srv.Close()

	res := testClient(srv.URL).Store(context.Background(), [][]byte{[]byte("x")})
	if !res.OK {
		t.Fatalf("2xx with malformed body must stay a success, got %q", res.Message)
	}
	if !strings.Contains(res.Message, "<html>stored</html>") {
		t.Fatalf("message %q missing the raw excerpt", res.Message)
	}
}

func TestStoreNon2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("server error"))
	}))
	defer srv.Close()

	res := testClient(srv.URL).Store(context.Background(), [][]byte{[]byte("x")})
	if res.OK {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Message, "500") || !strings.Contains(res.Message, "server error") {
		t.Fatalf("message %q missing status or body", res.Message)
	}
}

func TestStoreTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	res := testClient(srv.URL).Store(context.Background(), [][]byte{[]byte("x")})
	if res.OK {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Message, "STOW EXC") {
		t.Fatalf("message %q missing transport diagnostic", res.Message)
	}
}

func TestStoreSendsBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "orthanc" || pass != "secret" {
			t.Errorf("missing or wrong basic auth: %q %q %v", user, pass, ok)
		}
		w.Write([]byte(`{"Success":[],"Failed":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Endpoint{URL: srv.URL, Username: "orthanc", Password: "secret", VerifyTLS: true, Timeout: 5 * time.Second})
	if res := c.Store(context.Background(), [][]byte{[]byte("x")}); !res.OK {
		t.Fatalf("expected success, got %q", res.Message)
	}
}

func TestStoreRespectsVerifyTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Success":["a"],"Failed":[]}`))
	}))
	defer srv.Close()

	// The test server's certificate is self-signed, so a verifying
	// client must fail the handshake.
	strict := NewClient(Endpoint{URL: srv.URL, VerifyTLS: true, Timeout: 5 * time.Second})
	if res := strict.Store(context.Background(), [][]byte{[]byte("x")}); res.OK {
		t.Fatal("expected certificate verification failure")
	}

	lax := NewClient(Endpoint{URL: srv.URL, VerifyTLS: false, Timeout: 5 * time.Second})
	if res := lax.Store(context.Background(), [][]byte{[]byte("x")}); !res.OK {
		t.Fatalf("expected success with verification off, got %q", res.Message)
	}
}

func TestBaseTransportTLSConfig(t *testing.T) {
	lax := BaseTransport(false)
	if lax.TLSClientConfig == nil || !lax.TLSClientConfig.InsecureSkipVerify {
		t.Fatal("verification not disabled")
	}
	strict := BaseTransport(true)
	if strict.TLSClientConfig != nil && strict.TLSClientConfig.InsecureSkipVerify {
		t.Fatal("verification disabled on a verifying transport")
	}
}

func TestStoreTruncatesLongErrorBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("e", 2000)))
	}))
	defer srv.Close()

	res := testClient(srv.URL).Store(context.Background(), [][]byte{[]byte("x")})
	if res.OK {
		t.Fatal("expected failure")
	}
	if len(res.Message) > len("STOW ERR 502: ")+failureExcerptLimit+3 {
		t.Fatalf("failure message not truncated: %d chars", len(res.Message))
	}
}

func TestStoreTruncationKeepsUTF8Intact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		// Two ASCII bytes then 3-byte runes, so the excerpt limit
		// falls inside a rune.
		w.Write([]byte("ab" + strings.Repeat("世", 400)))
	}))
	defer srv.Close()

	res := testClient(srv.URL).Store(context.Background(), [][]byte{[]byte("x")})
	if res.OK {
		t.Fatal("expected failure")
	}
	if !utf8.ValidString(res.Message) {
		t.Fatalf("truncated message is not valid UTF-8: %q", res.Message)
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	for _, tc := range []struct {
		in    string
		limit int
		want  string
	}{
		{"abcdef", 10, "abcdef"},
		{"abcdef", 3, "abc..."},
		// limits inside a multi-byte rune trim back to its start
		{"abécd", 3, "ab..."},
		{"abécd", 4, "abé..."},
		{"世界", 4, "世..."},
	} {
		if got := truncate(tc.in, tc.limit); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}
