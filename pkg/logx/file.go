package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const logFilePrefix = "maestro-"

//nolint:gochecknoglobals // single process-wide log file
var (
	logFile     *os.File
	logFileOut  io.Writer
	logFileLock sync.Mutex
)

// InitializeLogFile opens a new timestamped log file in dir and routes all
// log output to it. At most keep log files are retained; older ones are
// removed. With tee set, lines are also written to stderr.
func InitializeLogFile(dir string, keep int, tee bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir %s: %w", dir, err)
	}

	name := logFilePrefix + time.Now().UTC().Format("20060102-150405.000") + ".log"
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	logFileLock.Lock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	if tee {
		logFileOut = io.MultiWriter(f, os.Stderr)
	} else {
		logFileOut = f
	}
	logFileLock.Unlock()

	pruneLogFiles(dir, keep)
	return nil
}

// CloseLogFile closes the active log file and restores stderr output.
func CloseLogFile() error {
	logFileLock.Lock()
	defer logFileLock.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	logFileOut = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

func fileWriter() io.Writer {
	logFileLock.Lock()
	defer logFileLock.Unlock()
	return logFileOut
}

func pruneLogFiles(dir string, keep int) {
	if keep <= 0 {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), logFilePrefix) && strings.HasSuffix(e.Name(), ".log") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return
	}

	// Timestamped names sort chronologically.
	sort.Strings(names)
	for _, name := range names[:len(names)-keep] {
		_ = os.Remove(filepath.Join(dir, name))
	}
}
