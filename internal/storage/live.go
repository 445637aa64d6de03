package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/yakaglitch/Temp/internal/models"
)

// writeFileAtomic replaces path with data. Readers see either the old or the
// new content, never a partial file.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "cannot create directory")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "cannot create temp file")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return errors.Wrap(err, "cannot write temp file")
	}
	if err = tmp.Chmod(0o644); err != nil {
		return errors.Wrap(err, "cannot chmod temp file")
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "cannot sync temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "cannot close temp file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "cannot replace file")
	}
	return syncDir(dir)
}

// syncDir flushes a directory entry so a rename or create inside it
// survives power loss
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errors.Wrap(err, "cannot open directory")
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return errors.Wrap(err, "cannot sync directory")
	}
	return nil
}

// ReadLive loads the live snapshot file
func ReadLive(path string) (models.LiveSnapshot, error) {
	var snap models.LiveSnapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, errors.Wrapf(err, "cannot decode %s", path)
	}
	return snap, nil
}
