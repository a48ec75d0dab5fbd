package logger

import (
	"regexp"

	"go.uber.org/zap/zapcore"
)

type maskRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// 敏感字段：JSON 键值对与 URL 查询参数
var maskRules = []maskRule{
	{regexp.MustCompile(`(?i)("(?:password|passwd|pwd|token|api_key|secret)"\s*:\s*)"[^"]*"`), `${1}"***"`},
	{regexp.MustCompile(`(?i)((?:password|passwd|pwd|token)=)[^&\s]*`), `${1}***`},
}

// Mask 将日志文本中的敏感值替换为 ***
func Mask(msg string) string {
	for _, r := range maskRules {
		msg = r.pattern.ReplaceAllString(msg, r.replacement)
	}
	return msg
}

// maskingCore 在写出前对日志消息做脱敏
type maskingCore struct {
	zapcore.Core
}

func newMaskingCore(core zapcore.Core) zapcore.Core {
	return &maskingCore{Core: core}
}

func (c *maskingCore) With(fields []zapcore.Field) zapcore.Core {
	return &maskingCore{Core: c.Core.With(fields)}
}

func (c *maskingCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *maskingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	entry.Message = Mask(entry.Message)
	masked := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if f.Type == zapcore.StringType {
			f.String = Mask(f.String)
		}
		masked[i] = f
	}
	return c.Core.Write(entry, masked)
}
