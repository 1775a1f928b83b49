package engine

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-agent/internal/device"
	"github.com/nerrad567/gray-logic-agent/internal/persistence"
)

// Mask is an access control permission bitmask.
type Mask uint8

// Permission bits, in the order used by LwM2M access control objects.
const (
	AccessRead Mask = 1 << iota
	AccessWrite
	AccessExecute
	AccessDelete
	AccessCreate

	AccessAll = AccessRead | AccessWrite | AccessExecute | AccessDelete | AccessCreate
)

// String renders the mask as "rwedc" with dashes for missing bits.
func (m Mask) String() string {
	const letters = "rwedc"
	var b strings.Builder
	for i := range len(letters) {
		if m&(1<<i) != 0 {
			b.WriteByte(letters[i])
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// ParseMask accepts a decimal bitmask ("7"), a letter set ("rwe") or the
// String form ("rwe--").
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		if Mask(n)&^AccessAll != 0 {
			return 0, fmt.Errorf("%w: mask %d has unknown bits", ErrInvalidACL, n)
		}
		return Mask(n), nil
	}

	const letters = "rwedc"
	var m Mask
	for _, c := range s {
		if c == '-' {
			continue
		}
		i := strings.IndexRune(letters, c)
		if i < 0 {
			return 0, fmt.Errorf("%w: mask %q", ErrInvalidACL, s)
		}
		m |= 1 << i
	}
	if s == "" {
		return 0, fmt.Errorf("%w: empty mask", ErrInvalidACL)
	}
	return m, nil
}

// DefaultSSID is the subject id of an instance's default entry. It applies
// to every server without an entry of its own.
const DefaultSSID uint16 = 0

// ACLEntry grants mask on one instance to one server.
type ACLEntry struct {
	Object   device.ObjectID   `cbor:"oid" json:"object_id"`
	Instance device.InstanceID `cbor:"iid" json:"instance_id"`
	SSID     uint16            `cbor:"ssid" json:"ssid"`
	Mask     Mask              `cbor:"mask" json:"mask"`
}

type aclKey struct {
	oid  device.ObjectID
	iid  device.InstanceID
	ssid uint16
}

// aclSnapshot is the persisted form of an AccessControl.
type aclSnapshot struct {
	Version int        `cbor:"version"`
	Entries []ACLEntry `cbor:"entries"`
}

const aclSnapshotVersion = 1

// AccessControl stores per-instance permissions.
//
// An instance with no entries is open to every server. Once an instance has
// entries, a server gets its own entry's mask, or the default entry's mask
// when it has none, or nothing.
//
// All public methods are thread-safe.
type AccessControl struct {
	mu       sync.Mutex
	entries  map[aclKey]Mask
	modified bool
}

// NewAccessControl returns an empty access control store.
func NewAccessControl() *AccessControl {
	return &AccessControl{entries: make(map[aclKey]Mask)}
}

// Set grants mask on (oid, iid) to ssid. A zero mask removes the entry.
func (a *AccessControl) Set(oid device.ObjectID, iid device.InstanceID, ssid uint16, mask Mask) error {
	if iid == device.InstanceIDInvalid {
		return fmt.Errorf("%w: reserved instance id", ErrInvalidACL)
	}
	if mask&^AccessAll != 0 {
		return fmt.Errorf("%w: mask %#x has unknown bits", ErrInvalidACL, uint8(mask))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := aclKey{oid, iid, ssid}
	if mask == 0 {
		if _, ok := a.entries[key]; ok {
			delete(a.entries, key)
			a.modified = true
		}
		return nil
	}
	if old, ok := a.entries[key]; !ok || old != mask {
		a.entries[key] = mask
		a.modified = true
	}
	return nil
}

// Allowed reports whether ssid holds every bit of need on (oid, iid).
func (a *AccessControl) Allowed(oid device.ObjectID, iid device.InstanceID, ssid uint16, need Mask) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if mask, ok := a.entries[aclKey{oid, iid, ssid}]; ok {
		return mask&need == need
	}
	if mask, ok := a.entries[aclKey{oid, iid, DefaultSSID}]; ok {
		return mask&need == need
	}
	for key := range a.entries {
		if key.oid == oid && key.iid == iid {
			return false
		}
	}
	return true
}

// Entries returns all entries ordered by object, instance and server.
func (a *AccessControl) Entries() []ACLEntry {
	a.mu.Lock()
	out := make([]ACLEntry, 0, len(a.entries))
	for key, mask := range a.entries {
		out = append(out, ACLEntry{Object: key.oid, Instance: key.iid, SSID: key.ssid, Mask: mask})
	}
	a.mu.Unlock()

	slices.SortFunc(out, func(x, y ACLEntry) int {
		return cmp.Or(
			cmp.Compare(x.Object, y.Object),
			cmp.Compare(x.Instance, y.Instance),
			cmp.Compare(x.SSID, y.SSID),
		)
	})
	return out
}

// Persist writes the entries as CBOR.
func (a *AccessControl) Persist(w io.Writer) error {
	snap := aclSnapshot{Version: aclSnapshotVersion, Entries: a.Entries()}
	if err := persistence.Encode(w, snap); err != nil {
		return fmt.Errorf("encoding access control: %w", err)
	}
	return nil
}

// MarkPersisted clears the modified flag after a snapshot is stored.
func (a *AccessControl) MarkPersisted() {
	a.mu.Lock()
	a.modified = false
	a.mu.Unlock()
}

// Restore replaces all entries with those read from r. On error the current
// entries are kept.
func (a *AccessControl) Restore(r io.Reader) error {
	var snap aclSnapshot
	if err := persistence.Decode(r, &snap); err != nil {
		return fmt.Errorf("decoding access control: %w", err)
	}
	if snap.Version != aclSnapshotVersion {
		return fmt.Errorf("%w: snapshot version %d", ErrInvalidACL, snap.Version)
	}

	entries := make(map[aclKey]Mask, len(snap.Entries))
	for _, e := range snap.Entries {
		if e.Instance == device.InstanceIDInvalid || e.Mask == 0 || e.Mask&^AccessAll != 0 {
			return fmt.Errorf("%w: %+v", ErrInvalidACL, e)
		}
		entries[aclKey{e.Object, e.Instance, e.SSID}] = e.Mask
	}

	a.mu.Lock()
	a.entries = entries
	a.modified = false
	a.mu.Unlock()
	return nil
}

// IsModified reports whether entries changed since they were last stored
// or restored.
func (a *AccessControl) IsModified() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.modified
}
