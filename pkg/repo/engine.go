// Package repo implements the repository engine (C3): an in-memory index of
// files, versions, and branches layered over the content-addressed object
// store, with a single exclusive lock guarding every public operation.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"miniblob/pkg/cache"
	"miniblob/pkg/delta"
	"miniblob/pkg/helper/errors"
	"miniblob/pkg/helper/log"
	"miniblob/pkg/store"
)

// reconstructionCacheSize bounds the LRU cache that memoises reconstructed
// file content across getFileContent calls, keyed by (name, hash).
const reconstructionCacheSize = 256

// Options configures a Repository beyond its root path.
type Options struct {
	// MinMatchLength is forwarded to the delta encoder.
	MinMatchLength int
	// SnapshotSchedule is a cron expression for periodic journal
	// compaction. Empty disables scheduled compaction.
	SnapshotSchedule string
	Logger           log.Logger
}

// Repository is the pair (object store rooted at a filesystem path,
// in-memory index of File histories and branches) described in the data
// model. It is the sole mutator of both.
type Repository struct {
	mu       sync.Mutex
	root     string
	store    *store.Store
	journal  *journal
	cache    *cache.LRUCache[string, []byte]
	cron     *cron.Cron
	logger   log.Logger
	minMatch int

	versions map[string][]FileVersion
	branches map[string]map[string]string
}

// New constructs a Repository rooted at path, creating the on-disk layout
// if absent and replaying any persisted journal before scanning
// branches/ for markers the journal does not yet know about.
func New(path string, opts Options) (*Repository, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewLogger()
	}

	objectsDir := filepath.Join(path, "objects")
	branchesDir := filepath.Join(path, "branches")
	journalDir := filepath.Join(path, "journal")

	for _, dir := range []string{path, objectsDir, branchesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create repository directory")
		}
	}

	objStore, err := store.New(objectsDir)
	if err != nil {
		return nil, err
	}

	j, err := newJournal(journalDir)
	if err != nil {
		return nil, err
	}

	r := &Repository{
		root:     path,
		store:    objStore,
		journal:  j,
		cache:    cache.NewLRUCache[string, []byte](reconstructionCacheSize),
		logger:   opts.Logger,
		minMatch: opts.MinMatchLength,
		versions: make(map[string][]FileVersion),
		branches: make(map[string]map[string]string),
	}

	if err := r.ensureBranchMarker("master"); err != nil {
		return nil, err
	}

	if err := r.journal.replay(r.versions, r.branches); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(branchesDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate branches directory")
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := r.branches[e.Name()]; !ok {
			r.branches[e.Name()] = make(map[string]string)
		}
	}

	if opts.SnapshotSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(opts.SnapshotSchedule, r.compact); err != nil {
			return nil, errors.Wrap(err, "failed to schedule journal compaction")
		}
		c.Start()
		r.cron = c
	}

	return r, nil
}

// Close stops scheduled compaction and releases the journal's file handle.
func (r *Repository) Close() error {
	if r.cron != nil {
		ctx := r.cron.Stop()
		<-ctx.Done()
	}
	return r.journal.close()
}

func (r *Repository) compact() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.journal.compact(r.versions, r.branches); err != nil {
		r.logger.WithError(err).Warn("journal snapshot compaction failed")
	}
}

func (r *Repository) ensureBranchMarker(name string) error {
	path := filepath.Join(r.root, "branches", name)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to stat branch marker")
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return errors.Wrap(err, "failed to create branch marker")
	}
	return nil
}

// SaveFile commits content as a new version of name on branch. A file's
// first commit is stored whole; every later commit is encoded as a delta
// against the branch's current head for name, and fails with a
// version-not-found error when that branch has no head for name. It
// implements the fork-on-divergence policy: a writer whose observed head
// has been displaced by a concurrent commit lands on a new branch instead
// of silently overwriting the displaced head.
func (r *Repository) SaveFile(name string, content []byte, author, message, branch string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.store.Put(content)
	if err != nil {
		return "", err
	}

	now := time.Now()
	history := r.versions[name]

	if len(history) == 0 {
		version := FileVersion{
			Hash:       h,
			ParentHash: "",
			Timestamp:  now,
			Author:     author,
			Message:    message,
			IsDelta:    false,
		}

		if err := r.commit(name, branch, version, ""); err != nil {
			return "", err
		}
		return h, nil
	}

	if err := r.ensureBranchExists(branch); err != nil {
		return "", err
	}
	parent := r.branches[branch][name]
	lastAppended := history[len(history)-1].Hash

	target := branch
	forkedFrom := ""
	if parent != lastAppended {
		target = fmt.Sprintf("%s-%d", branch, now.Unix())
		forkedFrom = branch
	}

	parentContent, err := r.getFileContentLocked(name, parent)
	if err != nil {
		return "", err
	}

	d := delta.EncodeWithOptions(parentContent, content, delta.Options{MinMatchLength: r.minMatch})
	dh, err := r.store.Put(d)
	if err != nil {
		return "", err
	}

	version := FileVersion{
		Hash:       dh,
		ParentHash: parent,
		Timestamp:  now,
		Author:     author,
		Message:    message,
		IsDelta:    true,
	}

	if err := r.commit(name, target, version, forkedFrom); err != nil {
		return "", err
	}
	return dh, nil
}

// commit applies a fully-formed version to in-memory state, journals it,
// and creates the target branch (optionally forked from an existing one)
// if it does not already exist.
func (r *Repository) commit(name, target string, version FileVersion, forkedFrom string) error {
	var forkedHeads map[string]string

	if forkedFrom != "" {
		if err := r.ensureBranchMarker(target); err != nil {
			return err
		}
		forkedHeads = make(map[string]string, len(r.branches[forkedFrom]))
		for k, v := range r.branches[forkedFrom] {
			forkedHeads[k] = v
		}
		r.branches[target] = forkedHeads
	} else if err := r.ensureBranchExists(target); err != nil {
		return err
	}

	r.versions[name] = append(r.versions[name], version)
	r.branches[target][name] = version.Hash

	return r.journal.append(journalEntry{
		Name:         name,
		TargetBranch: target,
		Version:      version,
		ForkedHeads:  forkedHeads,
	})
}

// ensureBranchExists creates an empty branch map and its on-disk marker if
// the branch has never been seen before.
func (r *Repository) ensureBranchExists(name string) error {
	if _, ok := r.branches[name]; ok {
		return nil
	}
	if err := r.ensureBranchMarker(name); err != nil {
		return err
	}
	r.branches[name] = make(map[string]string)
	return nil
}

// GetFileContent reconstructs the bytes of the version of name identified
// by hash, walking the delta chain back to its non-delta ancestor.
func (r *Repository) GetFileContent(name, hash string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getFileContentLocked(name, hash)
}

func (r *Repository) getFileContentLocked(name, hash string) ([]byte, error) {
	if cached, ok := r.cache.Get(cacheKey(name, hash)); ok {
		return cached, nil
	}

	history, ok := r.versions[name]
	if !ok {
		return nil, errors.VersionNotFoundf("file %q has no versions", name)
	}

	idx := indexOfHash(history, hash)
	if idx < 0 {
		return nil, errors.VersionNotFoundf("version %q not found for file %q", hash, name)
	}

	// Walk from the target back to its non-delta ancestor, collecting the
	// chain root-first so it can be replayed forward in one pass.
	var chain []FileVersion
	for cur := idx; ; {
		chain = append(chain, history[cur])
		if !history[cur].IsDelta {
			break
		}
		pidx := indexOfHash(history, history[cur].ParentHash)
		if pidx < 0 {
			return nil, errors.VersionNotFoundf("parent %q missing for file %q", history[cur].ParentHash, name)
		}
		cur = pidx
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	var content []byte
	for _, v := range chain {
		key := cacheKey(name, v.Hash)
		if cached, ok := r.cache.Get(key); ok {
			content = cached
			continue
		}

		obj, err := r.store.Get(v.Hash)
		if err != nil {
			return nil, err
		}

		if v.IsDelta {
			decoded, err := delta.Decode(content, obj)
			if err != nil {
				return nil, err
			}
			content = decoded
		} else {
			content = obj
		}

		r.cache.Put(key, content)
	}

	return content, nil
}

// GetLatestVersion returns the current content of name on branch.
func (r *Repository) GetLatestVersion(name, branch string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hash, err := r.headLocked(name, branch)
	if err != nil {
		return nil, err
	}
	return r.getFileContentLocked(name, hash)
}

// GetCurrentVersionHash returns the digest of the current head of name on
// branch without reading the object.
func (r *Repository) GetCurrentVersionHash(name, branch string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headLocked(name, branch)
}

func (r *Repository) headLocked(name, branch string) (string, error) {
	heads, ok := r.branches[branch]
	if !ok {
		return "", errors.BranchNotFoundf("branch %q not found", branch)
	}
	hash, ok := heads[name]
	if !ok {
		return "", errors.FileNotInBranchf("file %q has no head on branch %q", name, branch)
	}
	return hash, nil
}

// ObjectStoreSize returns the total size in bytes of objects persisted
// under the repository's objects directory, for the metrics gauge.
func (r *Repository) ObjectStoreSize() (int64, error) {
	var total int64
	objectsDir := filepath.Join(r.root, "objects")
	entries, err := os.ReadDir(objectsDir)
	if err != nil {
		return 0, errors.Wrap(err, "failed to enumerate objects directory")
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// ObjectSize returns the stored size in bytes of the object named hash,
// for metrics use.
func (r *Repository) ObjectSize(hash string) (int64, error) {
	info, err := os.Stat(filepath.Join(r.root, "objects", hash))
	if err != nil {
		return 0, errors.Wrap(err, "failed to stat object")
	}
	return info.Size(), nil
}

// GetBranches returns a snapshot of known branch names, in no particular
// order.
func (r *Repository) GetBranches() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.branches))
	for name := range r.branches {
		names = append(names, name)
	}
	return names
}

// GetFileHistory returns a snapshot of name's versions in commit order. An
// unknown file yields an empty slice, not an error.
func (r *Repository) GetFileHistory(name string) []FileVersion {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.versions[name]
	out := make([]FileVersion, len(history))
	copy(out, history)
	return out
}

func indexOfHash(history []FileVersion, hash string) int {
	for i, v := range history {
		if v.Hash == hash {
			return i
		}
	}
	return -1
}

func cacheKey(name, hash string) string {
	return name + "@" + hash
}
