package assets

import (
	"errors"
	"fmt"

	"go_styletransfer/core"
)

// FileStatus is the verification result for one asset file.
type FileStatus struct {
	File     string
	Size     int
	SHA256   string
	Expected string
	Err      error
}

// OK reports whether the file was readable and matched its pin, if any.
func (s FileStatus) OK() bool {
	return s.Err == nil
}

// Pinned reports whether the manifest carried a checksum for the file.
func (s FileStatus) Pinned() bool {
	return s.Expected != ""
}

// Verify reads every file named by m and checks pinned checksums.
// It returns one status per file (descriptor first, then styles in order)
// and a joined error covering every failing file.
func Verify(src Source, m *Manifest) ([]FileStatus, error) {
	entries := make([]Entry, 0, len(m.Styles)+1)
	entries = append(entries, m.Architecture)
	for _, s := range m.Styles {
		entries = append(entries, s.Entry)
	}

	statuses := make([]FileStatus, 0, len(entries))
	var errs []error
	for _, e := range entries {
		st := verifyEntry(src, e)
		if st.Err != nil {
			errs = append(errs, st.Err)
		}
		statuses = append(statuses, st)
	}
	return statuses, errors.Join(errs...)
}

func verifyEntry(src Source, e Entry) FileStatus {
	st := FileStatus{File: e.File, Expected: e.SHA256}
	data, err := src.ReadFile(e.File)
	if err != nil {
		st.Err = err
		return st
	}
	st.Size = len(data)
	st.SHA256 = core.ComputeSHA256FromBytes(data)
	if st.Pinned() && !core.ChecksumEqual(st.SHA256, st.Expected) {
		st.Err = fmt.Errorf("%w: %s is %s, expected %s", ErrChecksumMismatch, e.File, st.SHA256, st.Expected)
	}
	return st
}
