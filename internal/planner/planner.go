// Package planner computes the ordered action plan that reconciles the state
// store with a set of remote playlist snapshots.
//
// Build is a pure function: it never touches the filesystem or the network,
// and it emits at most one action per item, so planning twice against an
// unchanged store and snapshot set yields the empty plan.
package planner

import (
	"sort"
	"time"

	"chorus/internal/playlist"
	"chorus/internal/store"
)

// Kind identifies a reconciliation action.
type Kind string

const (
	KindMembership Kind = "membership"
	KindRelocate   Kind = "relocate"
	KindTag        Kind = "tag"
	KindTranscribe Kind = "transcribe"
	KindLink       Kind = "link"
	KindDownload   Kind = "download"
	KindDelete     Kind = "delete"
)

// weight orders actions by descending pipeline progress: items close to the
// library finish before new work starts, and deletions run last.
func (k Kind) weight() int {
	switch k {
	case KindMembership:
		return 0
	case KindRelocate:
		return 1
	case KindTag:
		return 2
	case KindTranscribe:
		return 3
	case KindLink:
		return 4
	case KindDownload:
		return 5
	case KindDelete:
		return 6
	default:
		return 7
	}
}

// Stage returns the failed_stage name persisted when this action fails.
func (k Kind) Stage() string {
	switch k {
	case KindDownload:
		return store.StageDownload
	case KindTranscribe:
		return store.StageTranscribe
	case KindTag:
		return store.StageTag
	case KindRelocate:
		return store.StageRelocate
	case KindLink:
		return store.StageLink
	case KindDelete:
		return store.StageDelete
	default:
		return string(k)
	}
}

// Action is one unit of reconciliation work against a single record.
type Action struct {
	Kind   Kind
	Record *store.Record

	// Playlists is the target membership set for membership actions.
	Playlists []string
	// Item carries refreshed snapshot metadata for membership actions.
	Item *playlist.Item
	// Owner is the record whose file a link action shares.
	Owner *store.Record
}

// Options tunes plan computation.
type Options struct {
	TranscriptionEnabled bool
	MaxAttempts          int
	RemoveFiles          bool
	PruneRequested       bool
	CycleStartedAt       time.Time
}

// Build diffs the given snapshots against the record set and returns the
// ordered plan. Only playlists with a snapshot present participated in a
// successful fetch; absence of a snapshot never implies removal.
func Build(snapshots []playlist.Snapshot, records []*store.Record, opts Options) []Action {
	fetched := make(map[string]struct{}, len(snapshots))
	desired := make(map[string][]string)
	metadata := make(map[string]playlist.Item)
	for _, snap := range snapshots {
		fetched[snap.PlaylistID] = struct{}{}
		for _, item := range snap.Items {
			desired[item.ItemID] = append(desired[item.ItemID], snap.PlaylistID)
			if _, seen := metadata[item.ItemID]; !seen {
				metadata[item.ItemID] = item
			}
		}
	}

	byItem := make(map[string]*store.Record, len(records))
	for _, record := range records {
		byItem[record.ItemID] = record
	}

	var actions []Action

	// New items and membership/metadata changes for known items.
	for _, snap := range snapshots {
		for _, item := range snap.Items {
			if byItem[item.ItemID] != nil {
				continue
			}
			meta := metadata[item.ItemID]
			fresh := &store.Record{
				ItemID:          item.ItemID,
				Status:          store.StatusDiscovered,
				Title:           meta.Title,
				Uploader:        meta.Uploader,
				DurationSeconds: meta.DurationSeconds,
				ThumbnailURL:    meta.ThumbnailURL,
			}
			fresh.SetPlaylists(desired[item.ItemID])
			byItem[item.ItemID] = fresh
			actions = append(actions, Action{
				Kind:      KindMembership,
				Record:    fresh,
				Playlists: fresh.Playlists,
				Item:      &meta,
			})
		}
	}

	for _, record := range records {
		if act, ok := membershipAction(record, fetched, desired, metadata); ok {
			actions = append(actions, act)
			continue
		}
		if act, ok := nextAction(record, byItem, records, opts); ok {
			actions = append(actions, act)
		}
	}

	sort.SliceStable(actions, func(i, j int) bool {
		wi, wj := actions[i].Kind.weight(), actions[j].Kind.weight()
		if wi != wj {
			return wi < wj
		}
		ri, rj := actions[i].Record, actions[j].Record
		if !ri.CreatedAt.Equal(rj.CreatedAt) {
			return ri.CreatedAt.Before(rj.CreatedAt)
		}
		return ri.ID < rj.ID
	})
	return actions
}

// membershipAction diffs an existing record's membership against the fetched
// snapshots and returns a store-only update when it changed. A record in a
// playlist that failed to fetch keeps that membership untouched.
func membershipAction(record *store.Record, fetched map[string]struct{}, desired map[string][]string, metadata map[string]playlist.Item) (Action, bool) {
	next := make([]string, 0, len(record.Playlists)+1)
	for _, id := range record.Playlists {
		if _, covered := fetched[id]; !covered {
			next = append(next, id)
		}
	}
	next = append(next, desired[record.ItemID]...)

	candidate := &store.Record{}
	candidate.SetPlaylists(next)

	changed := !equalStrings(record.Playlists, candidate.Playlists)

	var item *playlist.Item
	if meta, ok := metadata[record.ItemID]; ok {
		if meta.Title != record.Title || meta.Uploader != record.Uploader ||
			meta.DurationSeconds != record.DurationSeconds || meta.ThumbnailURL != record.ThumbnailURL {
			changed = true
		}
		item = &meta
	}

	// A removed item re-added to any playlist restarts its pipeline.
	if record.Status == store.StatusRemoved && len(candidate.Playlists) > 0 {
		changed = true
	}

	if !changed {
		return Action{}, false
	}
	return Action{
		Kind:      KindMembership,
		Record:    record,
		Playlists: candidate.Playlists,
		Item:      item,
	}, true
}

// nextAction returns the single next pipeline step for a record, if any.
func nextAction(record *store.Record, byItem map[string]*store.Record, records []*store.Record, opts Options) (Action, bool) {
	status := record.Status

	if status == store.StatusFailed {
		if opts.MaxAttempts > 0 && record.AttemptCount >= opts.MaxAttempts {
			return Action{}, false
		}
		// A failure inside the running cycle waits for the next one.
		if !opts.CycleStartedAt.IsZero() && !record.UpdatedAt.Before(opts.CycleStartedAt) {
			return Action{}, false
		}
		status = record.DurableStatus()
	}

	switch status {
	case store.StatusDiscovered:
		if len(record.Playlists) == 0 {
			return deleteAction(record, opts)
		}
		if record.ContentHash != "" {
			if owner := findHashOwner(record, records); owner != nil {
				return Action{Kind: KindLink, Record: record, Owner: owner}, true
			}
		}
		if hashOwnedElsewhere(record, records) {
			// Another live record owns these bytes but has no file yet;
			// wait for it rather than downloading a duplicate.
			return Action{}, false
		}
		return Action{Kind: KindDownload, Record: record}, true
	case store.StatusDownloaded:
		if len(record.Playlists) == 0 {
			return deleteAction(record, opts)
		}
		if opts.TranscriptionEnabled {
			return Action{Kind: KindTranscribe, Record: record}, true
		}
		return Action{Kind: KindTag, Record: record}, true
	case store.StatusTranscribed:
		if len(record.Playlists) == 0 {
			return deleteAction(record, opts)
		}
		return Action{Kind: KindTag, Record: record}, true
	case store.StatusTagged:
		if len(record.Playlists) == 0 {
			return deleteAction(record, opts)
		}
		return Action{Kind: KindRelocate, Record: record}, true
	case store.StatusComplete:
		if len(record.Playlists) == 0 {
			return deleteAction(record, opts)
		}
		return Action{}, false
	default:
		// Processing and removed records are not planned.
		return Action{}, false
	}
}

func deleteAction(record *store.Record, opts Options) (Action, bool) {
	if !opts.RemoveFiles && !opts.PruneRequested {
		return Action{}, false
	}
	return Action{Kind: KindDelete, Record: record}, true
}

// findHashOwner returns the earliest non-failed record sharing the hash that
// already owns a local file.
func findHashOwner(record *store.Record, records []*store.Record) *store.Record {
	var owner *store.Record
	for _, other := range records {
		if other.ItemID == record.ItemID || other.ContentHash != record.ContentHash {
			continue
		}
		if other.Status == store.StatusFailed || other.Status == store.StatusRemoved {
			continue
		}
		if other.LocalPath == "" {
			continue
		}
		if owner == nil || other.CreatedAt.Before(owner.CreatedAt) {
			owner = other
		}
	}
	return owner
}

// hashOwnedElsewhere reports whether another live record carries the same
// content hash, regardless of whether its file exists yet.
func hashOwnedElsewhere(record *store.Record, records []*store.Record) bool {
	if record.ContentHash == "" {
		return false
	}
	for _, other := range records {
		if other.ItemID == record.ItemID || other.ContentHash != record.ContentHash {
			continue
		}
		if other.Status == store.StatusFailed || other.Status == store.StatusRemoved {
			continue
		}
		return true
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
