// Package store implements the content-addressed object store (C2): a
// directory of one file per distinct content digest, written atomically via
// a temp-file-then-rename, exactly once per digest.
package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"miniblob/pkg/delta"
	"miniblob/pkg/helper/errors"
	"miniblob/pkg/helper/util"
)

// retry budget for the transient filesystem errors (EMFILE/ENOSPC under
// load, rename racing another process) that can hit the temp-file write
// and final rename. Not for logical misses (stat/read of a digest that
// genuinely doesn't exist), which Get and Put handle before ever retrying.
const (
	objectRetries     = 3
	objectInitialWait = 25 * time.Millisecond
	objectMaxWait     = 250 * time.Millisecond
)

// Store is a content-addressed blob directory rooted at a filesystem path.
type Store struct {
	objectsDir string
	group      singleflight.Group
}

// New creates a Store rooted at objectsDir, creating the directory if
// necessary.
func New(objectsDir string) (*Store, error) {
	if err := os.MkdirAll(objectsDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create object store directory")
	}
	return &Store{objectsDir: objectsDir}, nil
}

// Put computes the content digest of b and, if no object with that digest
// exists yet, writes it atomically. A put of an already-present digest is a
// no-op. Concurrent puts of the same digest are collapsed into a single
// write via singleflight, since the content is by definition identical.
func (s *Store) Put(b []byte) (string, error) {
	digest := delta.Digest(b)

	_, err, _ := s.group.Do(digest, func() (interface{}, error) {
		path := s.path(digest)
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, nil
		} else if !os.IsNotExist(statErr) {
			return nil, errors.Wrap(statErr, "failed to stat object")
		}

		writeErr := util.RetryWithBackoff(context.Background(), objectRetries, objectInitialWait, objectMaxWait, func() error {
			tmp, err := os.CreateTemp(s.objectsDir, ".tmp-*")
			if err != nil {
				return err
			}
			tmpPath := tmp.Name()

			if _, err := tmp.Write(b); err != nil {
				tmp.Close()
				os.Remove(tmpPath)
				return err
			}
			if err := tmp.Close(); err != nil {
				os.Remove(tmpPath)
				return err
			}

			if err := os.Rename(tmpPath, path); err != nil {
				os.Remove(tmpPath)
				return err
			}

			return nil
		})
		if writeErr != nil {
			return nil, errors.Wrap(writeErr, "failed to write object")
		}

		return nil, nil
	})
	if err != nil {
		return "", err
	}

	return digest, nil
}

// Get reads the object named by digest. It returns errors.ErrNotFound if the
// digest is unknown to the store.
func (s *Store) Get(digest string) ([]byte, error) {
	path := s.path(digest)
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return nil, errors.NotFoundf("object %s not found", digest)
	}

	var b []byte
	err := util.RetryWithBackoff(context.Background(), objectRetries, objectInitialWait, objectMaxWait, func() error {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		b = data
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("object %s not found", digest)
		}
		return nil, errors.Wrap(err, "failed to read object")
	}
	return b, nil
}

// Has reports whether an object with the given digest exists.
func (s *Store) Has(digest string) bool {
	_, err := os.Stat(s.path(digest))
	return err == nil
}

func (s *Store) path(digest string) string {
	return filepath.Join(s.objectsDir, digest)
}
