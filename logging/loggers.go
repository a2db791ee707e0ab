package logging

import (
	"bytes"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// const
const (
	PanicLevel = "panic"
	FatalLevel = "fatal"
	ErrorLevel = "error"
	WarnLevel  = "warn"
	InfoLevel  = "info"
	DebugLevel = "debug"
	TraceLevel = "trace"
)

const (
	//PANIC log level
	PANIC uint32 = iota
	//FATAL log level
	FATAL
	//ERROR log level
	ERROR
	//WARN log level
	WARN
	//INFO log level
	INFO
	//DEBUG log level
	DEBUG
	//TRACE log level
	TRACE
)

//LogFormat is the structured field set attached to a log line
type LogFormat = map[string]interface{}

var (
	clog     *logrus.Logger
	initOnce sync.Mutex
)

func convertLevel(level string) logrus.Level {
	switch level {
	case PanicLevel:
		return logrus.PanicLevel
	case FatalLevel:
		return logrus.FatalLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarnLevel:
		return logrus.WarnLevel
	case InfoLevel:
		return logrus.InfoLevel
	case DebugLevel:
		return logrus.DebugLevel
	case TraceLevel:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// Init loggers
func Init(path, filename string, level string, age uint32) {
	initOnce.Lock()
	defer initOnce.Unlock()

	clog = logrus.New()
	if fileHooker := NewFileRotateHooker(path, filename, age); fileHooker != nil {
		clog.Hooks.Add(fileHooker)
	}
	clog.Out = os.Stdout
	clog.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	clog.Level = convertLevel(level)

	clog.WithFields(logrus.Fields{
		"path":  path,
		"level": level,
	}).Info("Logger Configuration.")
}

//GetGID return gid
func GetGID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	b = b[:bytes.IndexByte(b, ' ')]
	n, _ := strconv.ParseUint(string(b), 10, 64)
	return n
}

//CPrint into stdout + log
func CPrint(level uint32, msg string, data LogFormat) {
	if clog == nil {
		Init(os.TempDir(), "tmp-bitj.log", "info", 0)
	}
	if data == nil {
		data = LogFormat{}
	}
	data["tid"] = GetGID()
	entry := clog.WithFields(logrus.Fields(data))
	switch level {
	case PANIC:
		entry.Panic(msg)
	case FATAL:
		entry.Fatal(msg)
	case ERROR:
		entry.Error(msg)
	case WARN:
		entry.Warn(msg)
	case INFO:
		entry.Info(msg)
	case DEBUG:
		entry.Debug(msg)
	case TRACE:
		entry.Trace(msg)
	default:
		entry.Error(msg)
	}
}
