package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for the logrus pipe writer goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// setupBuffer routes the shared logger into a buffer and restores stderr afterwards.
func setupBuffer(t *testing.T, level string) *syncBuffer {
	t.Helper()

	buf := &syncBuffer{}
	require.NoError(t, Setup(Options{Level: level, Output: buf}))
	t.Cleanup(func() {
		_ = Close()
		_ = Setup(Options{})
	})
	return buf
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-component")

	assert.Equal(t, "test-component", logger.Component())
	assert.NotEmpty(t, GetSessionID())
}

func TestLoggerFormatting(t *testing.T) {
	buf := setupBuffer(t, "debug")

	logger := NewLogger("test")
	logger.Printf("Test message %d", 123)
	logger.Debugf("Debug message")
	logger.Infof("Info message")
	logger.Warnf("Warning message")
	logger.Errorf("Error message")

	out := buf.String()
	for _, pattern := range []string{
		`msg="Test message 123"`,
		`level=debug msg="Debug message"`,
		`level=info msg="Info message"`,
		`level=warning msg="Warning message"`,
		`level=error msg="Error message"`,
		"component=test",
		"session=" + GetSessionID(),
	} {
		assert.Contains(t, out, pattern)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := setupBuffer(t, "warn")

	logger := NewLogger("test")
	logger.Debugf("hidden debug")
	logger.Infof("hidden info")
	logger.Warnf("visible warning")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warning")
	assert.False(t, logger.DebugMode())
}

func TestInvalidLevel(t *testing.T) {
	err := Setup(Options{Level: "chatty", Output: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
	require.NoError(t, Setup(Options{}))
}

func TestMultipleComponents(t *testing.T) {
	buf := setupBuffer(t, "info")

	NewLogger("component1").Printf("Message from component1")
	NewLogger("component2").Printf("Message from component2")

	out := buf.String()
	assert.Contains(t, out, "component=component1")
	assert.Contains(t, out, "component=component2")
	assert.Equal(t, 2, strings.Count(out, "session="+GetSessionID()))
}

func TestWithField(t *testing.T) {
	buf := setupBuffer(t, "info")

	NewLogger("worker").WithField("request", "abc").Infof("handled")

	assert.Contains(t, buf.String(), "request=abc")
}

func TestLogFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "browserd.log")

	require.NoError(t, Setup(Options{Level: "info", File: path, Output: &buf}))
	NewLogger("test").Infof("to both sinks")
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Setup(Options{}) })

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "to both sinks")
	assert.Contains(t, buf.String(), "to both sinks")

	// Close again should be safe
	assert.NoError(t, Close())
}

func TestWriter(t *testing.T) {
	buf := setupBuffer(t, "info")

	w := NewLogger("installer").Writer(logrus.InfoLevel)
	_, err := w.Write([]byte("downloading chromium\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "downloading chromium")
	}, time.Second, 10*time.Millisecond)
}

func TestGetSessionID(t *testing.T) {
	id1 := GetSessionID()
	id2 := GetSessionID()

	assert.Equal(t, id1, id2)
	assert.Contains(t, id1, "-")
}
