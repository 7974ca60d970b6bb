package tabular

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// WriteCSVAtomic replaces path with header followed by rows. The data is
// written to a temporary file in the same directory and renamed into place,
// so readers never observe a partial file.
func WriteCSVAtomic(path string, header []string, rows [][]string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "csv: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "csv: create temp file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(header); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	if err = w.WriteAll(rows); err != nil {
		return eris.Wrap(err, "csv: write rows")
	}
	if err = tmp.Sync(); err != nil {
		return eris.Wrap(err, "csv: sync")
	}
	if err = tmp.Close(); err != nil {
		return eris.Wrap(err, "csv: close temp file")
	}

	mode := os.FileMode(0o644)
	if fi, statErr := os.Stat(path); statErr == nil {
		mode = fi.Mode().Perm()
	}
	if err = os.Chmod(tmp.Name(), mode); err != nil {
		return eris.Wrap(err, "csv: chmod temp file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "csv: rename into %s", path)
	}
	return nil
}
