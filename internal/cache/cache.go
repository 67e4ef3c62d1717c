package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/jmapc/internal/shape"
	"github.com/roach88/jmapc/internal/wire"
)

// Store is a local copy of server state.
type Store interface {
	// Apply records a delta atomically.
	Apply(ctx context.Context, d shape.Delta) error
	// State returns the stored state token, or "" if none.
	State(ctx context.Context, accountID, typeName string) (string, error)
	// Entity returns the stored record or ErrNotFound.
	Entity(ctx context.Context, accountID, typeName, id string) (json.RawMessage, error)
}

// ErrNotFound is returned by Entity for an unknown record.
var ErrNotFound = errors.New("cache: entity not found")

// CacheWriteFailure means a delta could not be durably stored. It is not
// retryable.
type CacheWriteFailure struct {
	Cause   error
	Message string
}

func (e *CacheWriteFailure) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("cache write failure: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("cache write failure: %v", e.Cause)
}

func (e *CacheWriteFailure) Unwrap() error { return e.Cause }

// IsCacheWriteFailure reports whether err is or wraps a CacheWriteFailure.
func IsCacheWriteFailure(err error) bool {
	var cf *CacheWriteFailure
	return errors.As(err, &cf)
}

func writeFailure(cause error, format string, args ...any) *CacheWriteFailure {
	return &CacheWriteFailure{Cause: cause, Message: fmt.Sprintf(format, args...)}
}

func validateDelta(d shape.Delta) error {
	if d.AccountID == "" || d.TypeName == "" {
		return fmt.Errorf("delta needs an account and a type (got %q, %q)", d.AccountID, d.TypeName)
	}
	return nil
}

// nextRecord computes what to store for one record from the stored JSON,
// the patch the client sent and the properties the server returned. A nil
// result means the record must not be kept.
func nextRecord(existing json.RawMessage, patch wire.Object, update json.RawMessage) ([]byte, error) {
	var rec wire.Object
	if existing != nil {
		obj, err := decodeObject(existing)
		if err != nil {
			return nil, fmt.Errorf("decode stored record: %w", err)
		}
		rec = obj
	}
	if rec != nil && len(patch) > 0 && !applyPatch(rec, patch) {
		// The stored copy no longer matches the server; drop it so the
		// next fetch replaces it.
		rec = nil
		if update == nil {
			return nil, nil
		}
	}
	if update != nil {
		next, err := decodeObject(update)
		if err != nil {
			return nil, fmt.Errorf("decode update: %w", err)
		}
		if rec == nil {
			rec = next
		} else {
			for k, v := range next {
				rec[k] = v
			}
		}
	}
	if rec == nil {
		return nil, nil
	}
	return wire.MarshalCanonical(rec)
}

// applyPatch sets each patch path (a JSON pointer relative to the record)
// in rec; null removes the property. It reports false if a path's parent
// is not an object in rec.
func applyPatch(rec wire.Object, patch wire.Object) bool {
	for _, path := range patch.SortedKeys() {
		segments := strings.Split(path, "/")
		obj := rec
		for _, seg := range segments[:len(segments)-1] {
			child, ok := obj[unescapePointer(seg)].(wire.Object)
			if !ok {
				return false
			}
			obj = child
		}
		last := unescapePointer(segments[len(segments)-1])
		if _, isNull := patch[path].(wire.Null); isNull {
			delete(obj, last)
			continue
		}
		obj[last] = wire.Copy(patch[path])
	}
	return true
}

func unescapePointer(seg string) string {
	return strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
}

// advanceState reports whether a delta's State may replace stored.
func advanceState(d shape.Delta, stored string) bool {
	return d.State != "" && (d.OldState == "" || stored == "" || stored == d.OldState)
}

func decodeObject(data []byte) (wire.Object, error) {
	v, err := wire.FromJSON(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(wire.Object)
	if !ok {
		return nil, fmt.Errorf("record is %T, not an object", v)
	}
	return obj, nil
}
