package bthost

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Logger is the logging surface used by every component of the host stack.
type Logger interface {
	Info(...interface{})
	Debug(...interface{})
	Error(...interface{})
	Warn(...interface{})

	Infof(string, ...interface{})
	Debugf(string, ...interface{})
	Errorf(string, ...interface{})
	Warnf(string, ...interface{})

	ChildLogger(tags map[string]interface{}) Logger
}

var (
	logger   Logger
	loggerMu sync.Mutex
)

func SetLogger(l Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

func GetLogger() Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if logger == nil {
		logger = newDefaultLogger()
	}
	return logger
}

// ComponentLogger returns a child of the global logger tagged with the component name.
func ComponentLogger(component string) Logger {
	return GetLogger().ChildLogger(map[string]interface{}{"component": component})
}

// SetLogLevelMax logs everything, including HCI traffic traces.
func SetLogLevelMax() {
	if err := setLevel(logrus.TraceLevel); err != nil {
		GetLogger().Error(err)
	}
}

// SetLogLevel sets the level of the default logger by name, e.g. "debug".
func SetLogLevel(name string) error {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return errors.Wrap(ErrInvalidParameters, err.Error())
	}
	return setLevel(lvl)
}

func setLevel(lvl logrus.Level) error {
	lg, ok := GetLogger().(*defaultLogger)
	if !ok {
		return errors.New("non-default logger, don't know how to set level")
	}
	lg.Entry.Logger.SetLevel(lvl)
	return nil
}

type defaultLogger struct {
	*logrus.Entry
}

func newDefaultLogger() Logger {
	l := logrus.New()
	l.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	l.Level = logrus.InfoLevel
	l.Out = os.Stderr
	return &defaultLogger{Entry: logrus.NewEntry(l)}
}

func (d *defaultLogger) ChildLogger(tags map[string]interface{}) Logger {
	return &defaultLogger{d.Entry.WithFields(tags)}
}
