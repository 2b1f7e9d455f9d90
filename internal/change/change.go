// Package change detects which files need (re)indexing by comparing the
// current workspace against the last saved manifest — via a VCS diff when
// the repository's state has moved on, or a modification-time sweep
// otherwise.
//
// Grounded on internal/index/coordinator.go's ReconcileFilesOnStartup /
// detectFileChanges (deterministic deleted/modified/added classification,
// mtime comparison at second precision), generalized from "gitignore-hash
// reconciliation against the SQLite metadata store" to the VCS-state/mtime
// reconciliation against a manifest.Manifest this package implements.
package change

import (
	"context"
	"sort"

	"github.com/Aman-CERP/amanmcp/internal/manifest"
	"github.com/Aman-CERP/amanmcp/internal/vcs"
)

// Reason codes for why a ChangeSet was produced.
const (
	ReasonFull            = "full"
	ReasonMtime           = "mtime"
	ReasonVCSStateChanged = "vcs-state-changed"
)

// ChangeSet is the result of comparing the current file set to the
// manifest: which paths need indexing, re-indexing, or removal.
type ChangeSet struct {
	Added    []string
	Modified []string
	Deleted  []string
	Reason   string
}

// FileStat is one currently-discovered file's identity for change
// detection purposes.
type FileStat struct {
	Path      string
	ModTimeMs int64
}

// Lister enumerates the workspace's current indexable file set.
type Lister interface {
	ListFiles(ctx context.Context) ([]FileStat, error)
}

// Detect computes the ChangeSet for the workspace lister walks, against m
// (nil meaning no manifest exists yet). probe may be nil when the
// workspace isn't under version control; Detect then always falls back to
// the mtime comparison.
func Detect(ctx context.Context, lister Lister, probe vcs.Prober, m *manifest.Manifest) (*ChangeSet, error) {
	current, err := lister.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	currentMtime := make(map[string]int64, len(current))
	for _, f := range current {
		currentMtime[f.Path] = f.ModTimeMs
	}

	if m == nil {
		cs := &ChangeSet{Reason: ReasonFull}
		for path := range currentMtime {
			cs.Added = append(cs.Added, path)
		}
		sortChangeSet(cs)
		return cs, nil
	}

	if probe != nil && m.VCSState != nil {
		state, err := probe.State(ctx)
		if err == nil && state != nil && vcsStateChanged(m.VCSState, state) {
			diff, err := probe.Diff(ctx, m.VCSState.Commit, state.Commit)
			if err != nil {
				return fullReindexAfterDiffFailure(currentMtime, m), nil
			}
			return reconcileVCSDiff(diff, currentMtime, m), nil
		}
	}

	return reconcileMtime(currentMtime, m), nil
}

func vcsStateChanged(saved, current *vcs.State) bool {
	return saved.Branch != current.Branch || saved.Commit != current.Commit
}

// fullReindexAfterDiffFailure is the §4.7 fallback when a VCS-state change
// was detected but computing the diff itself failed: treat every current
// file as needing indexing, and still report files the manifest tracks
// that no longer exist.
func fullReindexAfterDiffFailure(currentMtime map[string]int64, m *manifest.Manifest) *ChangeSet {
	cs := &ChangeSet{Reason: ReasonVCSStateChanged}
	for path := range currentMtime {
		cs.Added = append(cs.Added, path)
	}
	for path := range m.Files {
		if _, ok := currentMtime[path]; !ok {
			cs.Deleted = append(cs.Deleted, path)
		}
	}
	sortChangeSet(cs)
	return cs
}

func reconcileVCSDiff(diff vcs.Diff, currentMtime map[string]int64, m *manifest.Manifest) *ChangeSet {
	cs := &ChangeSet{Reason: ReasonVCSStateChanged}
	diffed := make(map[string]bool)

	classify := func(path string) {
		diffed[path] = true
		_, inManifest := m.Files[path]
		_, existsNow := currentMtime[path]
		switch {
		case existsNow && inManifest:
			cs.Modified = append(cs.Modified, path)
		case existsNow && !inManifest:
			cs.Added = append(cs.Added, path)
		case !existsNow && inManifest:
			cs.Deleted = append(cs.Deleted, path)
		}
	}
	for _, p := range diff.Added {
		classify(p)
	}
	for _, p := range diff.Modified {
		classify(p)
	}
	for _, p := range diff.Deleted {
		classify(p)
	}

	// Full-scan pass: anything the diff didn't already settle.
	for path := range currentMtime {
		if diffed[path] {
			continue
		}
		if _, ok := m.Files[path]; !ok {
			cs.Added = append(cs.Added, path)
		}
	}
	for path := range m.Files {
		if diffed[path] {
			continue
		}
		if _, ok := currentMtime[path]; !ok {
			cs.Deleted = append(cs.Deleted, path)
		}
	}

	sortChangeSet(cs)
	return cs
}

func reconcileMtime(currentMtime map[string]int64, m *manifest.Manifest) *ChangeSet {
	cs := &ChangeSet{Reason: ReasonMtime}
	for path, mtimeMs := range currentMtime {
		entry, ok := m.Files[path]
		switch {
		case !ok:
			cs.Added = append(cs.Added, path)
		case mtimeMs > entry.LastModified:
			cs.Modified = append(cs.Modified, path)
		}
	}
	for path := range m.Files {
		if _, ok := currentMtime[path]; !ok {
			cs.Deleted = append(cs.Deleted, path)
		}
	}
	sortChangeSet(cs)
	return cs
}

func sortChangeSet(cs *ChangeSet) {
	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Deleted)
}
