package delaunay

import "github.com/pkg/errors"

// ErrInvariant marks a broken internal invariant of the mesh. It signals a
// bug, not bad input; the triangulation logs it and rebuilds itself from the
// live points.
var ErrInvariant = errors.New("delaunay: internal invariant violated")

func invariantf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvariant, format, args...)
}
