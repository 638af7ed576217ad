// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/sensorlink/lib/testutil"
)

func TestServerLifecycle(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path})
	})

	server, err := NewServer(ServerConfig{
		Address:         "127.0.0.1:0",
		Handler:         handler,
		ShutdownTimeout: 2 * time.Second,
		Logger:          testutil.Logger(t),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()

	// The listener is bound before Serve, so the first request cannot
	// race the accept loop into a refused connection.
	response, err := http.Get("http://" + server.Addr().String() + "/v1/devices")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	if response.StatusCode != http.StatusOK || !strings.Contains(string(body), `"/v1/devices"`) {
		t.Errorf("response = %d %s", response.StatusCode, body)
	}

	cancel()
	if err := testutil.RequireReceive(t, serveDone, 5*time.Second, "Serve did not return after cancel"); err != nil {
		t.Errorf("Serve() = %v, want nil", err)
	}
}

func TestNewServerRejectsBadConfig(t *testing.T) {
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	tests := []struct {
		name    string
		config  ServerConfig
		wantErr string
	}{
		{"missing address", ServerConfig{Handler: handler, Logger: testutil.Logger(t)}, "Address is required"},
		{"missing handler", ServerConfig{Address: "127.0.0.1:0", Logger: testutil.Logger(t)}, "Handler is required"},
		{"missing logger", ServerConfig{Address: "127.0.0.1:0", Handler: handler}, "Logger is required"},
		{"unbindable address", ServerConfig{Address: "256.0.0.1:0", Handler: handler, Logger: testutil.Logger(t)}, "listening on"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server, err := NewServer(test.config)
			if err == nil {
				server.Close()
				t.Fatal("NewServer succeeded")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, test.wantErr)
			}
		})
	}
}

func TestServerRejectsSecondBindOnSameAddress(t *testing.T) {
	first, err := NewServer(ServerConfig{Address: "127.0.0.1:0", Handler: http.NotFoundHandler(), Logger: testutil.Logger(t)})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer first.Close()

	_, err = NewServer(ServerConfig{Address: first.Addr().String(), Handler: http.NotFoundHandler(), Logger: testutil.Logger(t)})
	if err == nil {
		t.Fatal("second NewServer on a bound address succeeded")
	}
}
