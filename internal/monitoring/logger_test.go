package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLoggerCapturesOutput(t *testing.T) {
	orig := Logf
	defer func() { Logf = orig }()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	Logf("stage %d", 1)
	Warnf("tile %s degenerate", "0,0")

	assert.Equal(t, []string{"stage 1", "Warning: tile 0,0 degenerate"}, lines)
}

func TestSetLoggerNilMutes(t *testing.T) {
	orig := Logf
	defer func() { Logf = orig }()

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("ignored %d", 1) })
}
