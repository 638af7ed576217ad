// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/devicepath"
	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/metrics"
)

// Discovery defaults.
const (
	DefaultProbeTimeout     = 2 * time.Second
	DefaultScanConcurrency  = 20
	DefaultMaxScanAddresses = 512
)

// DefaultNamePatterns identifies compatible devices by their
// advertised name or identifier.
var DefaultNamePatterns = []string{
	"esp32", "fermentation", "controller", "sensor", "temp", "brewery", "fermenter",
}

// Device kinds reported by discovery.
const (
	KindFermentation = "esp32_fermentation"
	KindESP32        = "esp32_generic"
	KindGeneric      = "iot_device"
)

// Prober fetches the telemetry payload at an address. Errors mean
// "nothing compatible here".
type Prober interface {
	Probe(ctx context.Context, address string) ([]byte, error)
}

// DiscoveryConfig holds the dependencies for NewDiscovery.
type DiscoveryConfig struct {
	Prober Prober

	// NamePatterns defaults to DefaultNamePatterns.
	NamePatterns []string

	// Concurrency caps probes in flight. Zero means
	// DefaultScanConcurrency.
	Concurrency int

	// MaxAddresses rejects larger ranges. Zero means
	// DefaultMaxScanAddresses.
	MaxAddresses int

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Discovery scans address ranges for compatible devices.
type Discovery struct {
	prober       Prober
	patterns     []string
	concurrency  int
	maxAddresses int
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewDiscovery validates cfg and applies defaults.
func NewDiscovery(cfg DiscoveryConfig) (*Discovery, error) {
	switch {
	case cfg.Prober == nil:
		return nil, fmt.Errorf("discovery: Prober is required")
	case cfg.Clock == nil:
		return nil, fmt.Errorf("discovery: Clock is required")
	case cfg.Logger == nil:
		return nil, fmt.Errorf("discovery: Logger is required")
	}
	if len(cfg.NamePatterns) == 0 {
		cfg.NamePatterns = DefaultNamePatterns
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultScanConcurrency
	}
	if cfg.MaxAddresses <= 0 {
		cfg.MaxAddresses = DefaultMaxScanAddresses
	}
	patterns := make([]string, len(cfg.NamePatterns))
	for index, pattern := range cfg.NamePatterns {
		patterns[index] = strings.ToLower(pattern)
	}
	return &Discovery{
		prober:       cfg.Prober,
		patterns:     patterns,
		concurrency:  cfg.Concurrency,
		maxAddresses: cfg.MaxAddresses,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}, nil
}

// Discovered is a compatible device found by a scan.
type Discovered struct {
	Address      string         `json:"network_address"`
	DeviceID     string         `json:"device_id"`
	Name         string         `json:"name"`
	Kind         string         `json:"kind"`
	Capabilities []string       `json:"capabilities"`
	Sample       map[string]any `json:"sample_data,omitempty"`
}

// ScanResult reports a completed scan.
type ScanResult struct {
	Range     string        `json:"scan_range"`
	Probed    int           `json:"total_scanned"`
	Devices   []Discovered  `json:"discovered_devices"`
	StartedAt time.Time     `json:"scan_time"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Scan probes every host address in the IPv4 CIDR range and returns
// the compatible devices sorted by address. Ranges larger than the
// configured maximum are rejected with a validation error before any
// probe is sent. Individual probe failures are not errors.
func (d *Discovery) Scan(ctx context.Context, cidr string) (ScanResult, error) {
	hosts, err := HostAddresses(cidr, d.maxAddresses)
	if err != nil {
		return ScanResult{}, err
	}

	result := ScanResult{Range: cidr, Probed: len(hosts), StartedAt: d.clock.Now()}
	d.logger.Info("discovery scan started", "range", cidr, "hosts", len(hosts))

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.concurrency)
	for _, host := range hosts {
		address := host.String()
		group.Go(func() error {
			found, ok := d.probe(groupCtx, address)
			if ok {
				mu.Lock()
				result.Devices = append(result.Devices, found)
				mu.Unlock()
			}
			return nil
		})
	}
	// Probe goroutines never return errors.
	_ = group.Wait()

	slices.SortFunc(result.Devices, func(a, b Discovered) int {
		return netip.MustParseAddr(a.Address).Compare(netip.MustParseAddr(b.Address))
	})
	result.Elapsed = d.clock.Now().Sub(result.StartedAt)
	d.metrics.ScanCompleted(result.Probed, len(result.Devices), result.Elapsed)
	d.logger.Info("discovery scan complete",
		"range", cidr,
		"probed", result.Probed,
		"found", len(result.Devices),
		"elapsed", result.Elapsed,
	)
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("discovery: scan interrupted: %w", err)
	}
	return result, nil
}

func (d *Discovery) probe(ctx context.Context, address string) (Discovered, bool) {
	if ctx.Err() != nil {
		return Discovered{}, false
	}
	payload, err := d.prober.Probe(ctx, address)
	if err != nil {
		return Discovered{}, false
	}
	document, err := devicepath.ParseJSON(payload)
	if err != nil || document.Kind() != devicepath.Object {
		d.logger.Debug("probe returned non-object payload", "address", address)
		return Discovered{}, false
	}
	found, ok := Identify(address, document, d.patterns)
	if ok {
		d.logger.Info("compatible device found",
			"address", address,
			"device_id", found.DeviceID,
			"kind", found.Kind,
		)
	}
	return found, ok
}

// Identify decides whether a probe payload comes from a compatible
// device: it must advertise device_id or device_name, and one of
// them must contain a name pattern. Capabilities come from top-level
// keys. A missing identifier falls back to one derived from the
// address.
func Identify(address string, document devicepath.Value, patterns []string) (Discovered, bool) {
	idValue := document.Field("device_id")
	nameValue := document.Field("device_name")
	if !idValue.Found() && !nameValue.Found() {
		return Discovered{}, false
	}
	deviceID := strings.TrimSpace(idValue.String())
	name := strings.TrimSpace(nameValue.String())

	text := strings.ToLower(name + " " + deviceID)
	matched := false
	for _, pattern := range patterns {
		if strings.Contains(text, pattern) {
			matched = true
			break
		}
	}
	if !matched {
		return Discovered{}, false
	}

	found := Discovered{
		Address:      address,
		DeviceID:     deviceID,
		Name:         name,
		Kind:         KindGeneric,
		Capabilities: []string{},
	}
	if document.Field("sensor").Found() {
		found.Capabilities = append(found.Capabilities, "temperature")
	}
	if document.Field("relay").Found() {
		found.Capabilities = append(found.Capabilities, "relay_control")
	}
	switch {
	case strings.Contains(text, "fermentation"), strings.Contains(text, "fermenter"), strings.Contains(text, "brewery"):
		found.Kind = KindFermentation
	case strings.Contains(text, "esp32"):
		found.Kind = KindESP32
	}
	if found.Name == "" {
		found.Name = "Device at " + address
	}
	if found.DeviceID == "" {
		found.DeviceID = FallbackDeviceID(address)
	}
	return found, true
}

// FallbackDeviceID derives a stable identifier from an address.
func FallbackDeviceID(address string) string {
	sum := blake3.Sum256([]byte(address))
	return "device-" + hex.EncodeToString(sum[:6])
}

// HostAddresses expands an IPv4 CIDR range into its host addresses:
// every address except the network and broadcast addresses, or every
// address for /31 and /32. Ranges with more than maxAddresses
// addresses are rejected.
func HostAddresses(cidr string, maxAddresses int) ([]netip.Addr, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return nil, fault.Validation("discovery: invalid network range %q: %v", cidr, err)
	}
	if !prefix.Addr().Is4() {
		return nil, fault.Validation("discovery: network range %q is not IPv4", cidr)
	}
	prefix = prefix.Masked()

	size := 1 << (32 - prefix.Bits())
	if size > maxAddresses {
		return nil, fault.Validation("discovery: network range too large (%d addresses, maximum %d)", size, maxAddresses)
	}

	hosts := make([]netip.Addr, 0, size)
	for address := prefix.Addr(); prefix.Contains(address); address = address.Next() {
		hosts = append(hosts, address)
		if !address.Next().IsValid() {
			break
		}
	}
	if prefix.Bits() < 31 {
		hosts = hosts[1 : len(hosts)-1]
	}
	return hosts, nil
}
