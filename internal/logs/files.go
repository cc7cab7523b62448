package logs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"racefeed/internal/textutil"
)

// DaemonLog returns the newest daemon run log in logDir, or "" when none exists.
func DaemonLog(logDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(logDir, "racefeed-*.log"))
	if err != nil {
		return "", err
	}
	return newest(matches)
}

// AttemptLogs returns the attempt log files of a scraped event, oldest first.
func AttemptLogs(logDir, platform string, scrapedEventID int64) ([]string, error) {
	dir := filepath.Join(logDir, "attempts", textutil.FileToken(platform))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read attempt log directory: %w", err)
	}
	want := strconv.FormatInt(scrapedEventID, 10)
	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".log") {
			continue
		}
		// <timestamp>-<scraped event id>-<event token>-<correlation>.log
		parts := strings.SplitN(name, "-", 3)
		if len(parts) == 3 && parts[1] == want {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	// the timestamp prefix sorts chronologically
	sort.Strings(paths)
	return paths, nil
}

func newest(paths []string) (string, error) {
	var (
		best    string
		bestMod int64
	)
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if mod := info.ModTime().UnixNano(); best == "" || mod > bestMod {
			best, bestMod = path, mod
		}
	}
	return best, nil
}
