package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultMaxSizeMB = 100

// dailyFile is a lumberjack file that also rolls over when the local date
// changes. The date of the last write is recovered from the file's mtime, so
// short-lived runs started by cron rotate as well.
type dailyFile struct {
	mu  sync.Mutex
	lj  *lumberjack.Logger
	day string
	now func() time.Time
}

func openDailyFile(path string, maxBackups, maxSizeMB int, now func() time.Time) (*dailyFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}

	f := &dailyFile{
		lj: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			LocalTime:  true,
		},
		now: now,
	}

	fi, err := os.Stat(path)
	switch {
	case err == nil:
		f.day = dayOf(fi.ModTime())
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	return f, nil
}

func dayOf(t time.Time) string {
	return t.Local().Format(time.DateOnly)
}

func (f *dailyFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	today := dayOf(f.now())
	if f.day != "" && f.day != today {
		if err := f.lj.Rotate(); err != nil {
			return 0, fmt.Errorf("rotate log file: %w", err)
		}
	}
	f.day = today
	return f.lj.Write(p)
}

func (f *dailyFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lj.Close()
}
