// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/bureau-foundation/sensorlink/lib/alerting"
	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/ingest"
	"github.com/bureau-foundation/sensorlink/lib/linkindex"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/service"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 4 << 20

type api struct {
	daemon *daemon
	logger *slog.Logger
}

func newAPI(d *daemon) *api {
	return &api{daemon: d, logger: d.logger.With("component", "api")}
}

func (a *api) router() http.Handler {
	router := mux.NewRouter()
	router.Use(service.AccessLog(a.logger))

	router.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", a.daemon.metrics.Handler()).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/ingest", a.handleIngest).Methods(http.MethodPost)
	v1.HandleFunc("/entries/{id:[0-9]+}/readings", a.handleEntryReadings).Methods(http.MethodGet)
	v1.HandleFunc("/entries/{id:[0-9]+}/summary", a.handleEntrySummary).Methods(http.MethodGet)
	v1.HandleFunc("/entries/{id:[0-9]+}/optimize", a.handleOptimize).Methods(http.MethodPost)
	v1.HandleFunc("/entries/{id:[0-9]+}/links", a.handleUnlink).Methods(http.MethodDelete)
	v1.HandleFunc("/ranges", a.handleRanges).Methods(http.MethodGet)
	v1.HandleFunc("/alerts", a.handleAlerts).Methods(http.MethodGet)
	v1.HandleFunc("/devices", a.handleDevices).Methods(http.MethodGet)
	v1.HandleFunc("/devices/poll", a.handlePollNow).Methods(http.MethodPost)
	v1.HandleFunc("/discovery", a.handleDiscovery).Methods(http.MethodPost)

	return router
}

func (a *api) handleHealth(writer http.ResponseWriter, request *http.Request) {
	// A read against the pool proves the database is reachable.
	if _, err := a.daemon.db.Catalog.ListDevices(request.Context()); err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	service.WriteJSON(writer, http.StatusOK, map[string]string{"status": "ok"})
}

// ingestFailure is the body of a failed ingest. UnlinkedReadingIDs
// lists readings that were stored before linking failed.
type ingestFailure struct {
	service.ErrorBody
	UnlinkedReadingIDs []int64 `json:"unlinked_reading_ids,omitempty"`
}

func (a *api) handleIngest(writer http.ResponseWriter, request *http.Request) {
	var req ingest.Request
	if err := decodeBody(request, &req); err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	result, err := a.daemon.db.Pipeline.Ingest(request.Context(), req)
	if err != nil {
		if len(result.ReadingIDs) > 0 {
			a.logger.Warn("ingest stored readings but failed to link them",
				"reading_ids", result.ReadingIDs,
				"error", err,
			)
		}
		service.WriteJSON(writer, service.StatusFor(err), ingestFailure{
			ErrorBody: service.ErrorBody{
				Error:    err.Error(),
				Category: string(fault.CategoryOf(err)),
			},
			UnlinkedReadingIDs: result.ReadingIDs,
		})
		return
	}
	service.WriteJSON(writer, http.StatusCreated, result)
}

func (a *api) handleEntryReadings(writer http.ResponseWriter, request *http.Request) {
	entryID, err := pathID(request)
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	query := request.URL.Query()
	limit, err := optionalInt(query.Get("limit"), "limit")
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	offset, err := optionalInt(query.Get("offset"), "offset")
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	readings, err := a.daemon.db.Links.ReadingsForEntry(request.Context(), linkindex.ReadingsQuery{
		EntryID:    entryID,
		SensorType: query.Get("sensor_type"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	if readings == nil {
		readings = []sensor.Reading{}
	}
	service.WriteJSON(writer, http.StatusOK, map[string]any{
		"entry_id": entryID,
		"readings": readings,
	})
}

func (a *api) handleEntrySummary(writer http.ResponseWriter, request *http.Request) {
	entryID, err := pathID(request)
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	summary, err := a.daemon.db.Links.Summary(request.Context(), entryID)
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	service.WriteJSON(writer, http.StatusOK, summary)
}

func (a *api) handleOptimize(writer http.ResponseWriter, request *http.Request) {
	entryID, err := pathID(request)
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	result, err := a.daemon.db.Links.Optimize(request.Context(), entryID)
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	service.WriteJSON(writer, http.StatusOK, result)
}

func (a *api) handleUnlink(writer http.ResponseWriter, request *http.Request) {
	entryID, err := pathID(request)
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	removed, err := a.daemon.db.Links.Unlink(request.Context(), entryID, request.URL.Query().Get("sensor_type"))
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	service.WriteJSON(writer, http.StatusOK, map[string]any{
		"entry_id":       entryID,
		"ranges_removed": removed,
	})
}

func (a *api) handleRanges(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	start, err := requiredInt64(query.Get("start"), "start")
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	end, err := requiredInt64(query.Get("end"), "end")
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	entries, err := a.daemon.db.Links.EntriesForRange(request.Context(), start, end)
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	ranges, err := a.daemon.db.Links.RangesOverlapping(request.Context(), start, end)
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	if entries == nil {
		entries = []int64{}
	}
	if ranges == nil {
		ranges = []sensor.LinkRange{}
	}
	service.WriteJSON(writer, http.StatusOK, map[string]any{
		"entry_ids": entries,
		"ranges":    ranges,
	})
}

func (a *api) handleAlerts(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	filter := alerting.EventFilter{}
	var err error
	if filter.EntryID, err = optionalInt64(query.Get("entry_id"), "entry_id"); err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	if filter.RuleID, err = optionalInt64(query.Get("rule_id"), "rule_id"); err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	if filter.Limit, err = optionalInt(query.Get("limit"), "limit"); err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	if since := query.Get("since"); since != "" {
		filter.Since, err = time.Parse(time.RFC3339, since)
		if err != nil {
			service.WriteError(writer, a.logger, fault.Validation("since: %v", err))
			return
		}
	}
	events, err := alerting.ListEvents(request.Context(), a.daemon.db.Pool, filter)
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	if events == nil {
		events = []sensor.AlertEvent{}
	}
	service.WriteJSON(writer, http.StatusOK, map[string]any{"alerts": events})
}

func (a *api) handleDevices(writer http.ResponseWriter, request *http.Request) {
	devices, err := a.daemon.db.Catalog.ListDevices(request.Context())
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	if devices == nil {
		devices = []sensor.Device{}
	}
	service.WriteJSON(writer, http.StatusOK, map[string]any{"devices": devices})
}

// handlePollNow runs one poll cycle synchronously. It waits for the
// background loop if a cycle is already in progress.
func (a *api) handlePollNow(writer http.ResponseWriter, request *http.Request) {
	result := a.daemon.scheduler.RunOnce(request.Context())
	service.WriteJSON(writer, http.StatusOK, result)
}

type discoveryRequest struct {
	Range string `json:"range"`
}

func (a *api) handleDiscovery(writer http.ResponseWriter, request *http.Request) {
	var req discoveryRequest
	if err := decodeBody(request, &req); err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	if req.Range == "" {
		service.WriteError(writer, a.logger, fault.Validation("range is required (CIDR, e.g. 192.168.1.0/24)"))
		return
	}
	result, err := a.daemon.discovery.Scan(request.Context(), req.Range)
	if err != nil {
		service.WriteError(writer, a.logger, err)
		return
	}
	service.WriteJSON(writer, http.StatusOK, result)
}

func decodeBody(request *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(request.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fault.Validation("decoding request body: %v", err)
	}
	return nil
}

func pathID(request *http.Request) (int64, error) {
	return requiredInt64(mux.Vars(request)["id"], "entry id")
}

func requiredInt64(raw, name string) (int64, error) {
	if raw == "" {
		return 0, fault.Validation("%s is required", name)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fault.Validation("%s: %q is not an integer", name, raw)
	}
	return value, nil
}

func optionalInt64(raw, name string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return requiredInt64(raw, name)
}

func optionalInt(raw, name string) (int, error) {
	value, err := optionalInt64(raw, name)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fault.Validation("%s must not be negative", name)
	}
	return int(value), nil
}
