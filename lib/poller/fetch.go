// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/version"
)

// DefaultEndpoint is the telemetry path devices serve when their
// registration does not name one.
const DefaultEndpoint = "/api"

// DefaultFetchTimeout bounds one device request.
const DefaultFetchTimeout = 10 * time.Second

// Fetcher retrieves a device's raw telemetry payload.
type Fetcher interface {
	Fetch(ctx context.Context, device sensor.Device) ([]byte, error)
}

// HTTPFetcher fetches payloads over plain HTTP GET with a fixed
// timeout. It also serves as the discovery prober.
type HTTPFetcher struct {
	client   *resty.Client
	timeout  time.Duration
	endpoint string
}

// NewHTTPFetcher returns a fetcher whose requests time out after
// timeout (DefaultFetchTimeout when zero).
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPFetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", version.UserAgent()),
		timeout:  timeout,
		endpoint: DefaultEndpoint,
	}
}

// WithDefaultEndpoint sets the path used for devices that do not name
// one and for discovery probes.
func (f *HTTPFetcher) WithDefaultEndpoint(endpoint string) *HTTPFetcher {
	if endpoint != "" {
		f.endpoint = endpoint
	}
	return f
}

// Fetch implements [Fetcher].
func (f *HTTPFetcher) Fetch(ctx context.Context, device sensor.Device) ([]byte, error) {
	endpoint := device.Endpoint
	if endpoint == "" {
		endpoint = f.endpoint
	}
	return f.get(ctx, DeviceURL(device.Address, endpoint))
}

// Probe implements [Prober] by fetching the default endpoint.
func (f *HTTPFetcher) Probe(ctx context.Context, address string) ([]byte, error) {
	return f.get(ctx, DeviceURL(address, f.endpoint))
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	response, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		if isTimeout(err) {
			return nil, fault.TransientNetwork("GET %s: timeout after %s", url, f.timeout)
		}
		return nil, fault.TransientNetwork("GET %s: %v", url, err)
	}
	if !response.IsSuccess() {
		return nil, fault.TransientNetwork("GET %s: HTTP %d", url, response.StatusCode())
	}
	return response.Body(), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// DeviceURL builds the telemetry URL for a device address. Addresses
// without a scheme use http. An empty endpoint means DefaultEndpoint.
func DeviceURL(address, endpoint string) string {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	return strings.TrimRight(address, "/") + endpoint
}
