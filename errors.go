package datasplit

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrOutputExists    = errors.New("output already exists")
	ErrEmptyClass      = errors.New("class has no images")
	ErrDegenerateSplit = errors.New("degenerate split")
	ErrCopy            = errors.New("copy failed")
)

// ConfigurationError reports invalid settings, a missing raw root or a raw
// root without classes. It is returned before any filesystem mutation.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "datasplit: invalid " + e.Field + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
func (e *ConfigurationError) Unwrap() error        { return e.Err }

// OutputExistsError is returned under OverwriteRefuse when the output root
// is already present. The existing tree is left untouched.
type OutputExistsError struct {
	Path string
}

func (e *OutputExistsError) Error() string {
	return fmt.Sprintf("datasplit: %s already exists; rerun with overwrite=replace to rebuild it", e.Path)
}

func (e *OutputExistsError) Is(target error) bool { return target == ErrOutputExists }

// EmptyClassError names a class directory without recognised images.
type EmptyClassError struct {
	Class string
	Dir   string
}

func (e *EmptyClassError) Error() string {
	return fmt.Sprintf("datasplit: no images found in class %q (%s)", e.Class, e.Dir)
}

func (e *EmptyClassError) Is(target error) bool { return target == ErrEmptyClass }

// DegenerateSplitError is returned when a class is too small to populate
// all three partitions at the configured ratios.
type DegenerateSplitError struct {
	Class            string
	Total            int
	Train, Val, Test int
}

func (e *DegenerateSplitError) Error() string {
	return fmt.Sprintf("datasplit: invalid split for class %q: %d images give train=%d val=%d test=%d",
		e.Class, e.Total, e.Train, e.Val, e.Test)
}

func (e *DegenerateSplitError) Is(target error) bool { return target == ErrDegenerateSplit }

// CopyError wraps an I/O failure while materialising one file.
type CopyError struct {
	Src string
	Dst string
	Err error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("datasplit: copy %s -> %s: %v", e.Src, e.Dst, e.Err)
}

func (e *CopyError) Is(target error) bool { return target == ErrCopy }
func (e *CopyError) Unwrap() error        { return e.Err }
