package docs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopicsCarryHeadingTitles(t *testing.T) {
	topics := Topics()
	byName := make(map[string]string, len(topics))
	for _, topic := range topics {
		byName[topic.Name] = topic.Title
	}
	require.Equal(t, "Query language", byName["query"])
	require.Equal(t, "Interactive keys", byName["keys"])
	require.Equal(t, "Saved views", byName["views"])

	// Stable listing order.
	for i := 1; i < len(topics); i++ {
		require.Less(t, topics[i-1].Name, topics[i].Name)
	}
}

func TestGetNormalizesTopicName(t *testing.T) {
	body, ok := Get("  Query ")
	require.True(t, ok)
	require.True(t, strings.HasPrefix(body, "# Query language"))

	_, ok = Get("nope")
	require.False(t, ok)
	_, ok = Get("")
	require.False(t, ok)
	_, ok = Get("../docs")
	require.False(t, ok)
}
