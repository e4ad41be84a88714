package release

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultWatchFiles are the files whose modification times identify a build.
var DefaultWatchFiles = []string{
	"package.json",
	"client/src/App.tsx",
	"client/src/main.tsx",
	"client/public/sw.js",
	"server/index.ts",
}

// AppHash fingerprints a build from the modification times of the watched files under root.
// Missing files are skipped. The result is the first 8 hex digits of an md5 over
// "file:mtimeMillis" for each present file, in order.
func AppHash(root string, files []string) string {
	if len(files) == 0 {
		files = DefaultWatchFiles
	}
	h := md5.New()
	for _, file := range files {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(file)))
		if err != nil {
			continue
		}
		h.Write([]byte(file + ":" + strconv.FormatInt(info.ModTime().UnixMilli(), 10)))
	}
	return hex.EncodeToString(h.Sum(nil))[:8]
}
