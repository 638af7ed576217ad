// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/devicepath"
	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/ingest"
	"github.com/bureau-foundation/sensorlink/lib/metrics"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
)

// DefaultInterval is the scheduler tick.
const DefaultInterval = 30 * time.Second

// Registry is the device configuration the scheduler reads and the
// poll state it writes back. *catalog.Catalog implements it.
type Registry interface {
	ListDevices(ctx context.Context) ([]sensor.Device, error)
	FieldMappings(ctx context.Context, deviceID string) ([]sensor.FieldMapping, error)
	LinkedEntries(ctx context.Context, deviceID string) ([]int64, error)
	RecordPollSuccess(ctx context.Context, deviceID string, at time.Time, payload []byte) error
	RecordPollFailure(ctx context.Context, deviceID string, message string) error
}

// Ingester accepts extracted readings. *ingest.Pipeline implements
// it.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// Config holds the dependencies for NewScheduler.
type Config struct {
	Registry Registry
	Ingester Ingester
	Fetcher  Fetcher

	// Interval is the tick period. Zero means DefaultInterval.
	Interval time.Duration

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Outcome is what happened to one device in a cycle.
type Outcome string

const (
	// OutcomeSuccess: the payload was fetched and recorded.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailure: the fetch failed or the payload was not JSON.
	OutcomeFailure Outcome = "failure"
	// OutcomeSkipped: the device has no enabled field mappings.
	OutcomeSkipped Outcome = "skipped"
)

// DeviceResult reports one device's poll.
type DeviceResult struct {
	DeviceID string  `json:"device_id"`
	Outcome  Outcome `json:"outcome"`
	// Readings counts values handed to the ingest pipeline
	// successfully.
	Readings int    `json:"readings"`
	Error    string `json:"error,omitempty"`
}

// CycleResult reports one pass over the due devices.
type CycleResult struct {
	Started time.Time      `json:"started"`
	Devices []DeviceResult `json:"devices"`
	// Stopped is set when Stop interrupted the cycle before every
	// due device was polled.
	Stopped bool `json:"stopped,omitempty"`
}

// Scheduler polls due devices on a fixed interval.
type Scheduler struct {
	registry Registry
	ingester Ingester
	fetcher  Fetcher
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// cycleMu keeps RunOnce and the background loop from polling
	// concurrently.
	cycleMu sync.Mutex

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewScheduler validates cfg and returns a stopped Scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	switch {
	case cfg.Registry == nil:
		return nil, fmt.Errorf("poller: Registry is required")
	case cfg.Ingester == nil:
		return nil, fmt.Errorf("poller: Ingester is required")
	case cfg.Fetcher == nil:
		return nil, fmt.Errorf("poller: Fetcher is required")
	case cfg.Clock == nil:
		return nil, fmt.Errorf("poller: Clock is required")
	case cfg.Logger == nil:
		return nil, fmt.Errorf("poller: Logger is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler{
		registry: cfg.Registry,
		ingester: cfg.Ingester,
		fetcher:  cfg.Fetcher,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}, nil
}

// Start launches the polling loop. The first cycle runs immediately,
// then one per tick, until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("poller: scheduler already running")
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(ctx, s.stop, s.done)
	s.logger.Info("poller started", "interval", s.interval)
	return nil
}

// Stop signals the loop and waits for it to exit. A device being
// polled finishes first. Stop on a stopped Scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("poller stopped")
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runCycle(ctx, stop)

		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// RunOnce polls every device that is due now and returns when the
// cycle completes. It never runs concurrently with the loop's cycles.
func (s *Scheduler) RunOnce(ctx context.Context) CycleResult {
	return s.runCycle(ctx, nil)
}

func (s *Scheduler) runCycle(ctx context.Context, stop <-chan struct{}) CycleResult {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	result := CycleResult{Started: s.clock.Now()}
	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		s.logger.Error("listing devices failed", "error", err)
		return result
	}

	for _, device := range devices {
		if !device.DueAt(result.Started) {
			continue
		}
		if stopRequested(ctx, stop) {
			result.Stopped = true
			break
		}
		result.Devices = append(result.Devices, s.pollDevice(ctx, device))
	}

	s.metrics.CycleCompleted(len(result.Devices))
	if len(result.Devices) > 0 || result.Stopped {
		s.logger.Debug("poll cycle complete",
			"polled", len(result.Devices),
			"stopped", result.Stopped,
		)
	}
	return result
}

func stopRequested(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

func (s *Scheduler) pollDevice(ctx context.Context, device sensor.Device) DeviceResult {
	started := s.clock.Now()
	result := s.poll(ctx, device)
	s.metrics.PollCompleted(string(result.Outcome), s.clock.Now().Sub(started))
	return result
}

func (s *Scheduler) poll(ctx context.Context, device sensor.Device) DeviceResult {
	result := DeviceResult{DeviceID: device.ID}
	logger := s.logger.With("device_id", device.ID)

	mappings, err := s.registry.FieldMappings(ctx, device.ID)
	if err != nil {
		logger.Error("loading field mappings failed", "error", err)
		result.Outcome = OutcomeSkipped
		result.Error = err.Error()
		return result
	}
	if len(mappings) == 0 {
		logger.Debug("device has no field mappings, skipping")
		result.Outcome = OutcomeSkipped
		return result
	}
	entryIDs, err := s.registry.LinkedEntries(ctx, device.ID)
	if err != nil {
		logger.Error("loading linked entries failed", "error", err)
		result.Outcome = OutcomeSkipped
		result.Error = err.Error()
		return result
	}

	// The fetch is bounded by the fetcher's own timeout. Stopping the
	// scheduler does not abort it.
	payload, err := s.fetcher.Fetch(context.WithoutCancel(ctx), device)
	var document devicepath.Value
	if err == nil {
		document, err = devicepath.ParseJSON(payload)
		if err != nil {
			err = fault.TransientNetwork("malformed payload: %v", err)
		}
	}
	if err != nil {
		result.Outcome = OutcomeFailure
		result.Error = err.Error()
		if recordErr := s.registry.RecordPollFailure(ctx, device.ID, err.Error()); recordErr != nil {
			logger.Error("recording poll failure failed", "error", recordErr)
		}
		logger.Warn("device poll failed", "address", device.Address, "error", err)
		return result
	}

	polledAt := s.clock.Now()
	if err := s.registry.RecordPollSuccess(ctx, device.ID, polledAt, payload); err != nil {
		logger.Error("recording poll success failed", "error", err)
		result.Outcome = OutcomeFailure
		result.Error = err.Error()
		return result
	}
	result.Outcome = OutcomeSuccess
	if device.Status != sensor.DeviceOnline {
		logger.Info("device online", "previous_status", device.Status)
	}

	if len(entryIDs) == 0 {
		logger.Debug("device has no linked entries, nothing to ingest")
		return result
	}
	for _, extracted := range Extract(document, mappings, logger) {
		_, err := s.ingester.Ingest(ctx, ingest.Request{
			EntryIDs:   entryIDs,
			SensorType: extracted.SensorType,
			Values: []ingest.Value{{
				Value:      extracted.Value,
				RecordedAt: polledAt,
				Metadata:   extracted.Metadata,
			}},
			LinkKind: sensor.LinkPrimary,
			Source:   ingest.Source{Kind: sensor.SourceDevice, ID: device.ID},
		})
		if err != nil {
			logger.Error("ingesting polled value failed",
				"sensor_type", extracted.SensorType,
				"error", err,
			)
			continue
		}
		result.Readings++
	}
	return result
}

// Extracted is one value resolved from a payload by a field mapping.
type Extracted struct {
	SensorType string
	Value      sensor.Value
	Metadata   map[string]any
}

// Extract resolves each mapping against document. Mappings whose path
// is not found, or resolves to null or a non-scalar, produce nothing.
// A mapping with a malformed path is logged and skipped.
func Extract(document devicepath.Value, mappings []sensor.FieldMapping, logger *slog.Logger) []Extracted {
	var extracted []Extracted
	for _, mapping := range mappings {
		path, err := devicepath.Parse(mapping.SourcePath)
		if err != nil {
			logger.Warn("skipping field mapping with malformed path",
				"source_path", mapping.SourcePath,
				"error", err,
			)
			continue
		}
		value, ok := devicepath.Resolve(document, path).ReadingValue()
		if !ok {
			logger.Debug("field mapping not found in payload", "source_path", mapping.SourcePath)
			continue
		}
		metadata := map[string]any{"source_path": mapping.SourcePath}
		if mapping.Unit != "" {
			metadata["unit"] = mapping.Unit
		}
		extracted = append(extracted, Extracted{
			SensorType: mapping.TargetSensorType,
			Value:      value,
			Metadata:   metadata,
		})
	}
	return extracted
}
