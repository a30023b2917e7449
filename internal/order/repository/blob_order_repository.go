// Package repository implements order document persistence on top of
// gocloud.dev/blob buckets. Staged documents live in a pending bucket and are
// copied into a completed bucket once production submission succeeds.
package repository

import (
	"context"
	"encoding/json"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	apperrors "github.com/allisson/fulfillment/internal/errors"
	orderDomain "github.com/allisson/fulfillment/internal/order/domain"

	// Register all blob storage drivers
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobOrderRepository persists order documents keyed by partner and order id.
// Writes to the same key overwrite, which makes staging idempotent under
// message redelivery.
type BlobOrderRepository struct {
	pending   *blob.Bucket
	completed *blob.Bucket
}

// NewBlobOrderRepository creates a repository over the pending and completed
// buckets.
func NewBlobOrderRepository(pending, completed *blob.Bucket) *BlobOrderRepository {
	return &BlobOrderRepository{pending: pending, completed: completed}
}

// Key builds the storage key for an order document. The backslash separator
// is part of the storage contract shared with partner-facing tooling.
func Key(partnerCode, orderID string) string {
	return partnerCode + `\` + orderID
}

// SavePending writes the order document to pending storage, overwriting any
// document already staged under the same key.
func (r *BlobOrderRepository) SavePending(
	ctx context.Context,
	partnerCode, orderID string,
	doc *orderDomain.OrderDocument,
) error {
	return r.write(ctx, r.pending, partnerCode, orderID, doc, "failed to save pending order")
}

// GetPending retrieves the staged order document, returning ErrNotFound when
// no document exists under the key.
func (r *BlobOrderRepository) GetPending(
	ctx context.Context,
	partnerCode, orderID string,
) (*orderDomain.OrderDocument, error) {
	return r.read(ctx, r.pending, partnerCode, orderID, "failed to get pending order")
}

// DeletePending removes the staged document. Deleting a key that no longer
// exists is not an error; completion cleanup must tolerate races with
// redelivered messages.
func (r *BlobOrderRepository) DeletePending(ctx context.Context, partnerCode, orderID string) error {
	err := r.pending.Delete(ctx, Key(partnerCode, orderID))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil
		}
		return apperrors.Wrap(err, "failed to delete pending order")
	}
	return nil
}

// SaveCompleted writes the order document to completed storage.
func (r *BlobOrderRepository) SaveCompleted(
	ctx context.Context,
	partnerCode, orderID string,
	doc *orderDomain.OrderDocument,
) error {
	return r.write(ctx, r.completed, partnerCode, orderID, doc, "failed to save completed order")
}

// CompletedExists reports whether the order has already been recorded as
// completed.
func (r *BlobOrderRepository) CompletedExists(
	ctx context.Context,
	partnerCode, orderID string,
) (bool, error) {
	exists, err := r.completed.Exists(ctx, Key(partnerCode, orderID))
	if err != nil {
		return false, apperrors.Wrap(err, "failed to check completed order")
	}
	return exists, nil
}

// GetCompleted retrieves the completed order document, returning ErrNotFound
// when no document exists under the key.
func (r *BlobOrderRepository) GetCompleted(
	ctx context.Context,
	partnerCode, orderID string,
) (*orderDomain.OrderDocument, error) {
	return r.read(ctx, r.completed, partnerCode, orderID, "failed to get completed order")
}

func (r *BlobOrderRepository) write(
	ctx context.Context,
	bucket *blob.Bucket,
	partnerCode, orderID string,
	doc *orderDomain.OrderDocument,
	wrapMsg string,
) error {
	if doc == nil {
		return apperrors.Precondition("doc")
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode order document")
	}

	opts := &blob.WriterOptions{ContentType: "application/json"}
	if err := bucket.WriteAll(ctx, Key(partnerCode, orderID), body, opts); err != nil {
		return apperrors.Wrap(err, wrapMsg)
	}
	return nil
}

func (r *BlobOrderRepository) read(
	ctx context.Context,
	bucket *blob.Bucket,
	partnerCode, orderID string,
	wrapMsg string,
) (*orderDomain.OrderDocument, error) {
	body, err := bucket.ReadAll(ctx, Key(partnerCode, orderID))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, wrapMsg)
	}

	var doc orderDomain.OrderDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode order document")
	}
	return &doc, nil
}
