package maintenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeAllowlists(t *testing.T) {
	merged := MergeAllowlists(
		[]string{"ops@example.com", "oncall@example.com"},
		[]string{"ops@example.com", "extra@example.com"})

	assert.Equal(t, []string{"extra@example.com", "oncall@example.com", "ops@example.com"}, merged)
}

func TestMergeAllowlistsTrimsAndDropsBlanks(t *testing.T) {
	merged := MergeAllowlists([]string{" 10.0.0.1 ", ""}, []string{"10.0.0.1", "  "})

	assert.Equal(t, []string{"10.0.0.1"}, merged)
}

func TestMergeAllowlistsEmpty(t *testing.T) {
	assert.Empty(t, MergeAllowlists(nil, nil))
	assert.Equal(t, []string{"a"}, MergeAllowlists(nil, []string{"a"}))
	assert.Equal(t, []string{"a"}, MergeAllowlists([]string{"a"}, nil))
}
