package video

import (
	"fmt"
	"os"
	"path/filepath"
)

// UniquePath returns dir/stem.ext, or dir/stem_N.ext for the first N that
// does not exist yet.
func UniquePath(dir, stem, ext string) string {
	p := filepath.Join(dir, stem+ext)
	for n := 1; exists(p); n++ {
		p = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}
	return p
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
