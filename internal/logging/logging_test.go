package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
)

type LoggingTestSuite struct {
	suite.Suite
	buf *bytes.Buffer
}

func (s *LoggingTestSuite) SetupTest() {
	s.buf = new(bytes.Buffer)
}

func (s *LoggingTestSuite) TestParseLevel() {
	for name, expected := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
	} {
		l, err := ParseLevel(name)
		s.NoError(err, name)
		s.Equal(expected, l, name)
	}

	_, err := ParseLevel("verbose")
	s.ErrorContains(err, "verbose")
}

func (s *LoggingTestSuite) TestText() {
	l, err := New("", "", s.buf)
	s.Require().NoError(err)

	l.Debug("hidden")
	l.Info("shown", "class", "Post")
	s.NotContains(s.buf.String(), "hidden")
	s.Contains(s.buf.String(), "msg=shown")
	s.Contains(s.buf.String(), "class=Post")
}

func (s *LoggingTestSuite) TestJSON() {
	l, err := New("warn", "json", s.buf)
	s.Require().NoError(err)

	l.Info("hidden")
	l.Warn("shown", "code", 11000)

	var entry map[string]any
	s.Require().NoError(json.Unmarshal(s.buf.Bytes(), &entry))
	s.Equal("WARN", entry["level"])
	s.Equal("shown", entry["msg"])
	s.Equal(float64(11000), entry["code"])
}

func (s *LoggingTestSuite) TestDebugAddsSource() {
	l, err := New("debug", "json", s.buf)
	s.Require().NoError(err)

	l.Debug("trace")
	var entry map[string]any
	s.Require().NoError(json.Unmarshal(s.buf.Bytes(), &entry))
	s.Contains(entry, slog.SourceKey)
}

func (s *LoggingTestSuite) TestInvalid() {
	_, err := New("loud", "text", s.buf)
	s.Error(err)

	_, err = New("info", "xml", s.buf)
	s.ErrorContains(err, "xml")
}

func TestLoggingTestSuite(t *testing.T) {
	suite.Run(t, new(LoggingTestSuite))
}
