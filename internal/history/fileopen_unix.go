//go:build !windows

package history

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/hpungsan/medscan/internal/errors"
)

// openFileNoFollow opens path with O_NOFOLLOW so a symlink planted at the
// final component is refused. Directory components are covered by
// ValidatePath.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := syscall.Open(path, flag|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, uint32(perm))
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("cannot write to symlink")
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}
