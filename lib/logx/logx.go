package logx

type Level int

const (
	DEBUG Level = iota
	INFO
	NOTICE
	WARN
	ERROR
	CRITICAL
	LevelCount
)

// LoggerX is the root logger shared by the whole process.
// Section identifies subsystem which produced the message.
type LoggerX interface {
	Level() Level
	LogPrintX(section string, lvl Level, v ...interface{})
	LogPrintlnX(section string, lvl Level, v ...interface{})
	LogPrintfX(section string, lvl Level, fmt string, v ...interface{})
}

// Logger is LoggerX bound to one section.
type Logger interface {
	LogPrint(lvl Level, v ...interface{})
	LogPrintln(lvl Level, v ...interface{})
	LogPrintf(lvl Level, fmt string, v ...interface{})
}

type LogToX struct {
	section string
	logx    LoggerX
}

func NewLogToX(logx LoggerX, section string) LogToX {
	return LogToX{section: section, logx: logx}
}

func (l LogToX) LogPrint(lvl Level, v ...interface{})   { l.logx.LogPrintX(l.section, lvl, v...) }
func (l LogToX) LogPrintln(lvl Level, v ...interface{}) { l.logx.LogPrintlnX(l.section, lvl, v...) }
func (l LogToX) LogPrintf(lvl Level, fmt string, v ...interface{}) {
	l.logx.LogPrintfX(l.section, lvl, fmt, v...)
}

var _ Logger = LogToX{}

// NilLogger swallows everything. used where caller didn't provide logger.
type NilLogger struct{}

func (NilLogger) Level() Level                                     { return LevelCount }
func (NilLogger) LogPrintX(string, Level, ...interface{})          {}
func (NilLogger) LogPrintlnX(string, Level, ...interface{})        {}
func (NilLogger) LogPrintfX(string, Level, string, ...interface{}) {}

var _ LoggerX = NilLogger{}
