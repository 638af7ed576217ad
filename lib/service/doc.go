// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the HTTP serving scaffold for the
// sensorlink daemon.
//
// [Server] binds its TCP listener at construction and shuts down
// gracefully when the context given to Serve is cancelled. [WriteJSON] and
// [WriteError] give every handler the same response shape, with
// [StatusFor] translating fault categories (validation, not_found,
// transient_network, data_integrity, internal) into 400, 404, 503, 422
// and 500. [AccessLog] is request-logging middleware.
package service
