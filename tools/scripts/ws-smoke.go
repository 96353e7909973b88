// Package main provides a CI-friendly smoke test for the shieldgate session
// API and its event stream.
//
// It validates:
//   - handshake + subprotocol selection on /session/events
//   - snapshot fetch via GET /session
//   - bootstrap -> session_state frame on the stream
//   - navigate guard (anonymous dashboard request bounces home)
//   - logout -> logged_out frame
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	subprotocol  = "shieldgate.session.v1"
	maxReadBytes = 1 << 20 // 1MiB
)

type stateFrame struct {
	Type     string `json:"type"`
	Snapshot struct {
		State      string `json:"state"`
		ActiveView string `json:"active_view"`
		Session    struct {
			Authenticated bool   `json:"authenticated"`
			RoleKind      string `json:"role_kind"`
		} `json:"session"`
	} `json:"snapshot"`
}

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:8080", "shieldgate base URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	root := context.Background()

	conn, frames := mustSubscribe(root, *baseURL, *origin, *timeout)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	// The stream replays nothing; the starting point comes from GET /session.
	start := mustGetSnapshot(*baseURL, *timeout)
	if *verbose {
		fmt.Printf("initial: state=%s view=%s\n", start.State, start.ActiveView)
	}

	mustPost(*baseURL+"/session/bootstrap", `{"query":""}`, http.StatusOK, *timeout)
	boot := mustNextFrame(root, frames, *timeout)
	if boot.Snapshot.State == "" {
		fatalf("bootstrap frame missing state")
	}

	mustPost(*baseURL+"/session/navigate", `{"view":"dashboard"}`, http.StatusOK, *timeout)
	nav := mustNextFrame(root, frames, *timeout)
	if !nav.Snapshot.Session.Authenticated && nav.Snapshot.ActiveView != "home" {
		fatalf("anonymous dashboard request must bounce home, got view=%q", nav.Snapshot.ActiveView)
	}

	mustPost(*baseURL+"/session/logout", "", http.StatusNoContent, *timeout)
	out := mustNextFrame(root, frames, *timeout)
	if out.Snapshot.State != "logged_out" || out.Snapshot.ActiveView != "home" {
		fatalf("logout frame: state=%q view=%q", out.Snapshot.State, out.Snapshot.ActiveView)
	}

	fmt.Printf("OK: state=%s view=%s\n", out.Snapshot.State, out.Snapshot.ActiveView)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func mustSubscribe(parent context.Context, baseURL, origin string, stepTimeout time.Duration) (*websocket.Conn, chan stateFrame) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/session/events"

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}

	if got := conn.Subprotocol(); got != subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, subprotocol)
	}

	conn.SetReadLimit(maxReadBytes)

	frames := make(chan stateFrame, 64)
	go func() {
		defer close(frames)
		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			var f stateFrame
			if err := json.Unmarshal(data, &f); err != nil {
				fatalf("bad frame: %v", err)
			}
			if f.Type != "session_state" {
				fatalf("unexpected frame type: %q", f.Type)
			}
			frames <- f
		}
	}()

	return conn, frames
}

func mustNextFrame(parent context.Context, frames chan stateFrame, stepTimeout time.Duration) stateFrame {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		fatalf("timeout waiting for session_state frame: %v", ctx.Err())
	case f, ok := <-frames:
		if !ok {
			fatalf("stream closed while waiting for a frame")
		}
		return f
	}
	return stateFrame{}
}

func mustGetSnapshot(baseURL string, stepTimeout time.Duration) (snap struct {
	State      string `json:"state"`
	ActiveView string `json:"active_view"`
}) {
	client := &http.Client{Timeout: stepTimeout}
	resp, err := client.Get(baseURL + "/session")
	if err != nil {
		fatalf("GET /session: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fatalf("GET /session: status=%d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReadBytes)).Decode(&snap); err != nil {
		fatalf("decode snapshot: %v", err)
	}
	return snap
}

func mustPost(url, body string, wantStatus int, stepTimeout time.Duration) {
	client := &http.Client{Timeout: stepTimeout}

	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(http.MethodPost, url, rdr)
	if err != nil {
		fatalf("build request %s: %v", url, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		fatalf("POST %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != wantStatus {
		fatalf("POST %s: status=%d want=%d", url, resp.StatusCode, wantStatus)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
