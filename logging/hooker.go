package logging

import (
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat/go-file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
)

// NewFileRotateHooker returns a logrus hook writing every level to a daily
// rotated file under path.  age limits retention in days; zero keeps the
// rotatelogs default.
func NewFileRotateHooker(path, filename string, age uint32) logrus.Hook {
	if len(path) == 0 {
		return nil
	}

	pattern := filepath.Join(path, filename+".%Y%m%d")
	options := []rotatelogs.Option{
		rotatelogs.WithLinkName(filepath.Join(path, filename)),
		rotatelogs.WithRotationTime(time.Hour * 24),
	}
	if age > 0 {
		options = append(options, rotatelogs.WithMaxAge(time.Hour*24*time.Duration(age)))
	}

	writer, err := rotatelogs.New(pattern, options...)
	if err != nil {
		return nil
	}

	return lfshook.NewHook(lfshook.WriterMap{
		logrus.TraceLevel: writer,
		logrus.DebugLevel: writer,
		logrus.InfoLevel:  writer,
		logrus.WarnLevel:  writer,
		logrus.ErrorLevel: writer,
		logrus.FatalLevel: writer,
		logrus.PanicLevel: writer,
	}, &logrus.TextFormatter{FullTimestamp: true})
}
