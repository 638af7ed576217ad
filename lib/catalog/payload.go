// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/sensorlink/lib/fault"
)

// Device payloads are small JSON documents polled every minute or so;
// a shared encoder and decoder are safe for concurrent use.
var (
	payloadEncoder *zstd.Encoder
	payloadDecoder *zstd.Decoder
)

func init() {
	var err error
	payloadEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("catalog: zstd encoder initialization failed: " + err.Error())
	}
	payloadDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("catalog: zstd decoder initialization failed: " + err.Error())
	}
}

func compressPayload(payload []byte) []byte {
	if len(payload) == 0 {
		return nil
	}
	return payloadEncoder.EncodeAll(payload, nil)
}

// Payload is the most recent raw response stored for a device.
type Payload struct {
	DeviceID  string
	FetchedAt time.Time
	Data      []byte
}

// LastPayload returns the payload stored by the device's most recent
// successful poll. It returns a not_found error when the device has
// never been polled successfully.
func (c *Catalog) LastPayload(ctx context.Context, deviceID string) (Payload, error) {
	var payload Payload
	var compressed []byte
	var size int64
	err := c.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT fetched_at, size, payload FROM device_payloads WHERE device_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{deviceID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					payload.FetchedAt = time.Unix(0, stmt.ColumnInt64(0)).UTC()
					size = stmt.ColumnInt64(1)
					compressed = make([]byte, stmt.ColumnLen(2))
					stmt.ColumnBytes(2, compressed)
					return nil
				},
			})
	})
	if err != nil {
		return Payload{}, fmt.Errorf("catalog: last payload for %s: %w", deviceID, err)
	}
	if compressed == nil {
		return Payload{}, fault.NotFound("catalog: no payload stored for device %s", deviceID)
	}

	data, err := payloadDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return Payload{}, fault.DataIntegrity("catalog: payload for %s: zstd decompress: %v", deviceID, err)
	}
	if int64(len(data)) != size {
		return Payload{}, fault.DataIntegrity("catalog: payload for %s: got %d bytes, expected %d", deviceID, len(data), size)
	}
	payload.DeviceID = deviceID
	payload.Data = data
	return payload, nil
}
