package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := New()

	tests := []struct {
		line string
		want Class
	}{
		{"13:02:11 I/Tag: ok", Standard},
		{"10-17 13:02:11.100  123  456 I ActivityManager: start", Standard},
		{"x E/tag: fail", Standard},
		{"service INFO ready", Standard},
		{"[  12.345678] usb 1-1: new device", Standard},
		{"[2024-01-15 10:30:45] worker started", Standard},
		{"I/chatty  ( 1234): uid=1000 expire", Standard},
		{"sshd[812]: Accepted publickey", Standard},
		{"user@host:~$ ls", NonStandard},
		{"total 48", NonStandard},
		{"drwxr-xr-x  2 root root 4096 .", NonStandard},
		{"", NonStandard},
		{"information", NonStandard},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify([]byte(tt.line)))
		})
	}
	assert.Equal(t, "standard", Standard.String())
}
