package repo

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"miniblob/pkg/helper/errors"
)

// journalEntry is one committed mutation: either a plain append to an
// existing branch, or a fork that first clones the source branch's full
// head map under a new branch name.
type journalEntry struct {
	Name         string            `json:"name"`
	TargetBranch string            `json:"targetBranch"`
	Version      FileVersion       `json:"version"`
	ForkedHeads  map[string]string `json:"forkedHeads,omitempty"`
}

type journalSnapshot struct {
	Versions map[string][]FileVersion     `json:"versions"`
	Branches map[string]map[string]string `json:"branches"`
}

// journal persists repository mutations as an append-only log of JSON
// lines under <root>/journal/ops.log, replayed on startup to rebuild
// in-memory state. Compact folds the current state into snapshot.json and
// truncates the log, bounding replay cost after a long-running repository.
type journal struct {
	mu      sync.Mutex
	dir     string
	logFile *os.File
}

func newJournal(dir string) (*journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create journal directory")
	}

	f, err := os.OpenFile(filepath.Join(dir, "ops.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open journal log")
	}

	return &journal{dir: dir, logFile: f}, nil
}

func (j *journal) snapshotPath() string { return filepath.Join(j.dir, "snapshot.json") }
func (j *journal) logPath() string      { return filepath.Join(j.dir, "ops.log") }

// append records entry in the log. Callers already hold the repository
// lock, so entries are observed in commit order.
func (j *journal) append(entry journalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal journal entry")
	}
	data = append(data, '\n')

	if _, err := j.logFile.Write(data); err != nil {
		return errors.Wrap(err, "failed to append journal entry")
	}
	return nil
}

// replay rebuilds versions/branches from any snapshot plus the log entries
// appended after it.
func (j *journal) replay(versions map[string][]FileVersion, branches map[string]map[string]string) error {
	if snap, err := os.ReadFile(j.snapshotPath()); err == nil {
		var s journalSnapshot
		if err := json.Unmarshal(snap, &s); err != nil {
			return errors.Wrap(err, "failed to parse journal snapshot")
		}
		for k, v := range s.Versions {
			versions[k] = v
		}
		for k, v := range s.Branches {
			branches[k] = v
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to read journal snapshot")
	}

	f, err := os.Open(j.logPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to open journal log for replay")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry journalEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return errors.Wrap(err, "failed to parse journal entry")
		}
		applyJournalEntry(versions, branches, entry)
	}
	return scanner.Err()
}

func applyJournalEntry(versions map[string][]FileVersion, branches map[string]map[string]string, entry journalEntry) {
	if entry.ForkedHeads != nil {
		heads := make(map[string]string, len(entry.ForkedHeads))
		for k, v := range entry.ForkedHeads {
			heads[k] = v
		}
		branches[entry.TargetBranch] = heads
	}
	if _, ok := branches[entry.TargetBranch]; !ok {
		branches[entry.TargetBranch] = make(map[string]string)
	}
	versions[entry.Name] = append(versions[entry.Name], entry.Version)
	branches[entry.TargetBranch][entry.Name] = entry.Version.Hash
}

// compact writes a full snapshot of versions/branches and truncates the
// log, since every entry in it is now reflected in the snapshot. Callers
// already hold the repository lock.
func (j *journal) compact(versions map[string][]FileVersion, branches map[string]map[string]string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	snap := journalSnapshot{Versions: versions, Branches: branches}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal journal snapshot")
	}

	tmp, err := os.CreateTemp(j.dir, ".snapshot-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary snapshot file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to write snapshot")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to close temporary snapshot file")
	}
	if err := os.Rename(tmpPath, j.snapshotPath()); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to finalize snapshot")
	}

	if err := j.logFile.Close(); err != nil {
		return errors.Wrap(err, "failed to close journal log before truncation")
	}
	f, err := os.OpenFile(j.logPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to reopen truncated journal log")
	}
	j.logFile = f

	return nil
}

// close releases the log file handle.
func (j *journal) close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.logFile.Close()
}
