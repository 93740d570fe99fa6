package mcpserver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

// TestServerStartRandomPort verifies that Start() selects a random available port.
func TestServerStartRandomPort(t *testing.T) {
	srv, _ := setupTestServer(t, time.Millisecond)

	port, err := srv.Start(context.Background(), "")
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Errorf("Invalid port number: %d", port)
	}

	expectedURL := fmt.Sprintf("http://localhost:%d/mcp", port)
	if srv.URL() != expectedURL {
		t.Errorf("URL mismatch: got %s, want %s", srv.URL(), expectedURL)
	}

	if err := srv.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
	// A second stop is a no-op.
	if err := srv.Stop(); err != nil {
		t.Errorf("second Stop() failed: %v", err)
	}
}

// TestServerDoubleStart verifies that calling Start() twice returns an error.
func TestServerDoubleStart(t *testing.T) {
	srv, _ := setupTestServer(t, time.Millisecond)

	if _, err := srv.Start(context.Background(), ""); err != nil {
		t.Fatalf("First Start() failed: %v", err)
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			t.Errorf("Stop() failed: %v", err)
		}
	}()

	if _, err := srv.Start(context.Background(), ""); err == nil {
		t.Error("Second Start() should have returned an error")
	}
}

func TestServeStdio_ListsTools(t *testing.T) {
	srv, _ := setupTestServer(t, time.Millisecond)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	defer func() { _ = outR.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go func() {
		_ = srv.ServeStdio(ctx, inR, outW)
		_ = outW.Close()
	}()
	go func() {
		for _, line := range []string{
			`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`,
			`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		} {
			if _, err := io.WriteString(inW, line+"\n"); err != nil {
				return
			}
		}
	}()

	var listing string
	scanner := bufio.NewScanner(outR)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); strings.Contains(line, `"id":2`) {
			listing = line
			break
		}
	}
	cancel()
	_ = inW.Close()

	if listing == "" {
		t.Fatal("no tools/list response")
	}
	for _, tool := range []string{"start_build", "get_build_status", "stop_build", "export_to_github", "request_credentials", "get_build_history"} {
		if !strings.Contains(listing, `"`+tool+`"`) {
			t.Errorf("tools/list is missing %s", tool)
		}
	}
	if !strings.Contains(listing, "0 or omitted uses the configured default") {
		t.Error("max_iterations description does not explain the zero value")
	}
}
