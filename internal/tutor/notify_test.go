package tutor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboxDropsOldest(t *testing.T) {
	inbox := NewInbox(3)
	for i := 0; i < 5; i++ {
		inbox.Notify("u", Notification{Level: LevelInfo, Message: fmt.Sprintf("n%d", i)})
	}
	got := inbox.Drain("u")
	require.Len(t, got, 3)
	assert.Equal(t, "n2", got[0].Message)
	assert.Equal(t, "n4", got[2].Message)
	assert.False(t, got[0].At.IsZero())
	assert.Empty(t, inbox.Drain("u"))
}

func TestSkillsAddressed(t *testing.T) {
	got := skillsAddressed(nil, "x", "y")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
