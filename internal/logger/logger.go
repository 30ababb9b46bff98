package logger

import (
	"io"
	"os"

	"github.com/go-kratos/kratos/v2/log"
)

// ServiceName - имя сервиса в каждой записи лога
const ServiceName = "face-analysis"

// New создает корневой логгер приложения, пишущий в stdout
func New(env, level string) log.Logger {
	return NewWithWriter(os.Stdout, env, level)
}

// NewWithWriter создает корневой логгер поверх w.
// В production отладочные записи отбрасываются независимо от уровня.
func NewWithWriter(w io.Writer, env, level string) log.Logger {
	logger := log.With(log.NewStdLogger(w),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service", ServiceName,
	)

	lvl := log.ParseLevel(level)
	if env == "production" && lvl < log.LevelInfo {
		lvl = log.LevelInfo
	}

	return log.NewFilter(logger, log.FilterLevel(lvl))
}
