package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// AnyVersion skips the version check on Update. It reproduces the naive
// full-document overwrite and is only used to demonstrate lost updates.
const AnyVersion int64 = -1

// Update is one partial write: a JSON merge patch (RFC 7396) computed against the
// record at BaseVersion.
type Update struct {
	BaseVersion int64
	Patch       []byte
}

// Filter narrows List and Subscribe. The zero value matches everything.
type Filter struct {
	CostCenter string
}

func (f Filter) Matches(r RequestRecord) bool {
	return f.CostCenter == "" || f.CostCenter == r.CostCenter
}

// Store is the durable, shared document store. Implementations must make Update
// atomic: the version check, the patch and the version bump happen in one step,
// and the returned record is exactly what was persisted.
type Store interface {
	Create(ctx context.Context, rec RequestRecord) (string, error)
	Get(ctx context.Context, id string) (RequestRecord, error)
	List(ctx context.Context, f Filter) ([]RequestRecord, error)
	Update(ctx context.Context, id string, u Update) (RequestRecord, error)
	Subscribe(ctx context.Context, f Filter) (Subscription, error)
}

// Subscription delivers full snapshots of the matching set. A slow consumer only
// ever sees the latest snapshot; intermediate ones are dropped.
type Subscription interface {
	Updates() <-chan []RequestRecord
	Close()
}

// MergePatch computes the merge patch that turns before into after.
func MergePatch(before, after RequestRecord) ([]byte, error) {
	a, err := json.Marshal(before)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(after)
	if err != nil {
		return nil, err
	}
	return jsonpatch.CreateMergePatch(a, b)
}

// ApplyUpdate is the version-checked merge shared by every Store implementation.
// The result carries Version = current.Version + 1.
func ApplyUpdate(current RequestRecord, u Update) (RequestRecord, error) {
	if u.BaseVersion != AnyVersion && u.BaseVersion != current.Version {
		return RequestRecord{}, fmt.Errorf("%w: %s at version %d, update based on %d", ErrConflict, current.ID, current.Version, u.BaseVersion)
	}
	doc, err := json.Marshal(current)
	if err != nil {
		return RequestRecord{}, err
	}
	merged := doc
	if len(u.Patch) > 0 {
		merged, err = jsonpatch.MergePatch(doc, u.Patch)
		if err != nil {
			return RequestRecord{}, fmt.Errorf("%w: bad patch: %v", ErrInvalidPayload, err)
		}
	}
	var next RequestRecord
	if err := json.Unmarshal(merged, &next); err != nil {
		return RequestRecord{}, fmt.Errorf("%w: bad patch: %v", ErrInvalidPayload, err)
	}
	next.ID = current.ID
	next.Version = current.Version + 1
	return next, nil
}

// Clone deep-copies a record through its JSON form.
func Clone(r RequestRecord) (RequestRecord, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return RequestRecord{}, err
	}
	var out RequestRecord
	if err := json.Unmarshal(b, &out); err != nil {
		return RequestRecord{}, err
	}
	return out, nil
}

// SortRecords orders records by creation time, oldest first.
func SortRecords(rs []RequestRecord) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}
