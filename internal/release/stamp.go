package release

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/edahouse/shopcore/internal/shop/model"
)

var ErrNoBuildTimestamp = errors.New("no BUILD_TIMESTAMP declaration found")

var (
	workerTimestamp = regexp.MustCompile(`const BUILD_TIMESTAMP = '[^']*';`)
	envBuildTime    = regexp.MustCompile(`(?m)^BUILD_TIME=.*$`)
)

// Stamped describes a stamped build.
type Stamped struct {
	Timestamp string
	BuildTime string
	AppHash   string
}

// BuildTimestamp formats t the way the service worker embeds it: YYYYMMDD-HHMM.
func BuildTimestamp(t time.Time) string {
	return t.Format("20060102-1504")
}

// Stamp writes a fresh build timestamp into the service worker and BUILD_TIME into the env
// file, then reports the resulting app hash.
func Stamp(cfg model.ReleaseConfig, now time.Time) (Stamped, error) {
	out := Stamped{
		Timestamp: BuildTimestamp(now),
		BuildTime: now.UTC().Format(time.RFC3339),
	}
	if err := StampWorker(filepath.Join(cfg.Root, cfg.WorkerFile), out.Timestamp); err != nil {
		return Stamped{}, err
	}
	if err := StampEnv(filepath.Join(cfg.Root, cfg.EnvFile), out.BuildTime); err != nil {
		return Stamped{}, err
	}
	out.AppHash = AppHash(cfg.Root, cfg.WatchFiles)
	return out, nil
}

// StampWorker replaces the first BUILD_TIMESTAMP declaration in the worker script.
func StampWorker(path, timestamp string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read service worker: %w", err)
	}
	loc := workerTimestamp.FindIndex(b)
	if loc == nil {
		return fmt.Errorf("%s: %w", path, ErrNoBuildTimestamp)
	}
	out := replaceAt(b, loc, "const BUILD_TIMESTAMP = '"+timestamp+"';")
	return writeKeepingMode(path, out)
}

// StampEnv sets BUILD_TIME in the env file, creating the file or appending the line when
// needed.
func StampEnv(path, buildTime string) error {
	line := "BUILD_TIME=" + buildTime
	b, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read env file: %w", err)
	}
	if loc := envBuildTime.FindIndex(b); loc != nil {
		return writeKeepingMode(path, replaceAt(b, loc, line))
	}
	b = append(b, []byte("\n"+line+"\n")...)
	return writeKeepingMode(path, b)
}

func replaceAt(b []byte, loc []int, repl string) []byte {
	out := make([]byte, 0, len(b)-(loc[1]-loc[0])+len(repl))
	out = append(out, b[:loc[0]]...)
	out = append(out, repl...)
	return append(out, b[loc[1]:]...)
}

func writeKeepingMode(path string, b []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, b, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
