package infrastructure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNewConversation(t *testing.T) {
	text := FormatNewConversation("Ana", "5511999998888", "Olá")
	assert.Equal(t, "New conversation\nAna (+5511999998888)\n\nOlá", text)

	long := FormatNewConversation("Ana", "1", strings.Repeat("é", 300))
	assert.True(t, strings.HasSuffix(long, "…"))
	assert.Equal(t, 200, strings.Count(long, "é"))
}
