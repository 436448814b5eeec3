package filelogger

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"

	"nread/lib/logx"
)

type UseColor int

const (
	ColorAuto UseColor = iota
	ColorOn
	ColorOff
)

type logLevels [logx.LevelCount]string

var levelstrings = [2]logLevels{
	// uncolored
	{
		logx.DEBUG:    "   DEBUG",
		logx.INFO:     "    INFO",
		logx.NOTICE:   "  NOTICE",
		logx.WARN:     " WARNING",
		logx.ERROR:    "   ERROR",
		logx.CRITICAL: "CRITICAL",
	},
	// colored
	{
		logx.DEBUG:    "\033[37m   DEBUG\033[0m",
		logx.INFO:     "\033[34m    INFO\033[0m",
		logx.NOTICE:   "\033[32m  NOTICE\033[0m",
		logx.WARN:     "\033[33m WARNING\033[0m",
		logx.ERROR:    "\033[31m   ERROR\033[0m",
		logx.CRITICAL: "\033[35mCRITICAL\033[0m",
	},
}

var formatstrings = [2]string{
	// uncolored
	"%s [%s] ",
	// colored
	"%s [\033[36m%s\033[0m] ",
}

var _ logx.LoggerX = (*FileLogger)(nil)

type FileLogger struct {
	w *bufio.Writer
	l sync.Mutex
	t uint
	m logx.Level
}

func NewFileLogger(
	f *os.File, logLevel logx.Level, c UseColor) (*FileLogger, error) {

	l := &FileLogger{t: uint(c) & 1, m: logLevel}
	fd := f.Fd()
	if c != ColorOff && (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) {
		l.w = bufio.NewWriter(colorable.NewColorable(f))
		l.t = 1
	} else {
		l.w = bufio.NewWriter(f)
	}
	return l, nil
}

func (l *FileLogger) Level() logx.Level {
	return l.m
}

func (l *FileLogger) prepareWrite(section string, lvl logx.Level, t time.Time) {
	Y, M, D := t.Date()
	h, m, s := t.Clock()
	fmt.Fprintf(l.w, "%d-%02d-%02d %02d:%02d:%02d ", Y, M, D, h, m, s)
	fmt.Fprintf(l.w, formatstrings[l.t], levelstrings[l.t][lvl], section)
}

func (l *FileLogger) finish() {
	l.w.WriteByte('\n')
	l.w.Flush()
}

func (l *FileLogger) LogPrintX(
	section string, lvl logx.Level, v ...interface{}) {

	if l.m > lvl {
		return
	}

	t := time.Now().UTC()

	l.l.Lock()
	defer l.l.Unlock()

	l.prepareWrite(section, lvl, t)
	fmt.Fprint(l.w, v...)
	l.finish()
}

func (l *FileLogger) LogPrintlnX(
	section string, lvl logx.Level, v ...interface{}) {

	if l.m > lvl {
		return
	}

	t := time.Now().UTC()

	l.l.Lock()
	defer l.l.Unlock()

	l.prepareWrite(section, lvl, t)
	for i, x := range v {
		if i != 0 {
			l.w.WriteByte(' ')
		}
		fmt.Fprint(l.w, x)
	}
	l.finish()
}

func (l *FileLogger) LogPrintfX(
	section string, lvl logx.Level, fmts string, v ...interface{}) {

	if l.m > lvl {
		return
	}

	t := time.Now().UTC()

	l.l.Lock()
	defer l.l.Unlock()

	l.prepareWrite(section, lvl, t)
	fmt.Fprintf(l.w, fmts, v...)
	l.finish()
}
