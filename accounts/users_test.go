package accounts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNonLoginShell(t *testing.T) {
	assert.True(t, NonLoginShell("/usr/sbin/nologin"))
	assert.True(t, NonLoginShell("/sbin/nologin"))
	assert.True(t, NonLoginShell("/bin/false"))
	assert.False(t, NonLoginShell("/bin/bash"))
	assert.False(t, NonLoginShell(""))
	assert.False(t, NonLoginShell("nologin"))
}

func TestNologinShellPath(t *testing.T) {
	path := NologinShellPath()
	assert.True(t, strings.HasPrefix(path, "/"))
	assert.True(t, NonLoginShell(path))
}
