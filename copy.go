package datasplit

import (
	"io"
	"os"
	"time"
)

// copyFile copies src to a new file dst and carries over the permission
// bits and modification time. dst must not exist. It returns the number of
// bytes written.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, err
	}
	if err := out.Close(); err != nil {
		return n, err
	}

	// OpenFile is subject to the umask.
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return n, err
	}
	// Zero atime leaves the access time as the copy set it.
	if err := os.Chtimes(dst, time.Time{}, info.ModTime()); err != nil {
		return n, err
	}
	return n, nil
}
