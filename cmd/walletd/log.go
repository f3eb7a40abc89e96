package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/coinkeep/walletd/build"
	"github.com/coinkeep/walletd/signal"
)

// Loggers per subsystem. A single backend logger is created and all
// subsystem loggers created from it write to the backend. Loggers
// can't be used before the log rotator has been initialized with a
// log file, which happens early in main() by calling initLogRotator.
var (
	logWriter = &build.LogWriter{}

	backendLog = btclog.NewBackend(logWriter)

	logRotator *rotator.Rotator

	wltdLog = build.NewSubLogger("WLTD", backendLog.Logger)
	p2pLog  = build.NewSubLogger("P2P ", backendLog.Logger)
	peerLog = build.NewSubLogger("PEER", backendLog.Logger)
	mgrLog  = build.NewSubLogger("MANR", backendLog.Logger)
	fltrLog = build.NewSubLogger("FLTR", backendLog.Logger)
	wltLog  = build.NewSubLogger("WALT", backendLog.Logger)
	kchnLog = build.NewSubLogger("KCHN", backendLog.Logger)
)

func init() {
	signal.UseLogger(wltdLog)
}

// subsystemLoggers maps each subsystem identifier to its logger.
var subsystemLoggers = map[string]btclog.Logger{
	"WLTD": wltdLog,
	"P2P ": p2pLog,
	"PEER": peerLog,
	"MANR": mgrLog,
	"FLTR": fltrLog,
	"WALT": wltLog,
	"KCHN": kchnLog,
}

// initLogRotator initializes the logging rotator to write logs to
// logFile and create roll files in the same directory. It must be
// called before the package-global logger variables are used.
func initLogRotator(logFile string, maxLogFileSize, maxLogFiles int) {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, int64(maxLogFileSize*1024), false, maxLogFiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %v\n", err)
		os.Exit(1)
	}

	pr, pw := io.Pipe()
	go r.Run(pr)

	logWriter.RotatorPipe = pw
	logRotator = r
}

// setLogLevel sets the logging level for the given subsystem.
// Invalid subsystems are ignored.
func setLogLevel(subsystemID, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// setLogLevels sets every subsystem logger to the same level.
func setLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		setLogLevel(subsystemID, logLevel)
	}
}
