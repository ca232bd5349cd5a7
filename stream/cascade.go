// Package stream provides DynamoDB Streams handlers for cascade operations
// on a dynamokv table.
//
// Deleting a record removes only its hash. The owned elements, collections
// and extension records it held stay behind until something reaps them.
// Handler does that from the table's stream, so writers can delete records
// with a single batch and leave the cascade to a Lambda function.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/lattice/kv/dynamokv"
	"github.com/jacentio/lattice/store"
)

// EventRemove is the stream event name of a deleted item.
const EventRemove = "REMOVE"

// Handler processes DynamoDB stream events for cascade deletes.
type Handler struct {
	store    *store.Store
	registry *store.Registry
	logger   *slog.Logger
}

// NewHandler creates a new stream handler. reg resolves the record keys
// found in the stream to their types.
func NewHandler(s *store.Store, reg *store.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    s,
		registry: reg,
		logger:   logger,
	}
}

// HandleCascadeDelete reaps the owned data of records whose hash was
// removed. This function is designed to be used as an AWS Lambda handler.
//
// A deleted record shows up once per hash field; each record is reaped at
// most once per invocation. Reaping is idempotent, so redelivered batches
// are safe.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	seen := make(map[string]bool)
	for _, record := range event.Records {
		key, ok := removedRecordKey(record)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true

		if err := h.processKey(ctx, key); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"key", key,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processKey reaps the record stored under key if it is gone and its type
// holds data on behalf of its records.
func (h *Handler) processKey(ctx context.Context, key string) error {
	ref, err := h.registry.ParseKey(key)
	if err != nil {
		if errors.Is(err, store.ErrInvalidArgument) {
			// Index hashes and keys of other applications.
			h.logger.Debug("skipping non-record key", "key", key)
			return nil
		}
		return err
	}
	if !h.registry.HasChildren(ref.Type()) {
		return nil
	}

	// Update rewrites fields in place and never removes them, so a record
	// that still exists lost a field some other way and is left alone.
	exists, err := h.store.Exists(ctx, ref)
	if err != nil {
		return fmt.Errorf("check %s: %w", key, err)
	}
	if exists {
		h.logger.Warn("record still exists, skipping cascade", "key", key)
		return nil
	}

	h.logger.Info("processing cascade delete", "key", key)
	if err := h.store.Reap(ctx, ref); err != nil {
		return fmt.Errorf("reap %s: %w", key, err)
	}
	h.logger.Info("cascade delete completed",
		"key", key,
		"relationships", len(h.registry.ChildrenOf(ref.Type())),
	)
	return nil
}

// removedRecordKey returns the logical key of a removed hash field item.
func removedRecordKey(record events.DynamoDBEventRecord) (string, bool) {
	if record.EventName != EventRemove {
		return "", false
	}
	pk, sk := streamKey(record.Change)
	if pk == "" || !strings.HasPrefix(sk, dynamokv.PrefixHash) {
		return "", false
	}
	return pk, true
}

// streamKey reads the item key of a change. Streams configured without key
// attributes in Keys still carry them in the old image.
func streamKey(change events.DynamoDBStreamRecord) (pk, sk string) {
	pk = getStringAttr(change.Keys, dynamokv.AttrPK)
	sk = getStringAttr(change.Keys, dynamokv.AttrSK)
	if pk == "" {
		pk = getStringAttr(change.OldImage, dynamokv.AttrPK)
		sk = getStringAttr(change.OldImage, dynamokv.AttrSK)
	}
	return pk, sk
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
