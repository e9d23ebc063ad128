package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remhind/internal/testdata"
)

func TestResolveComponentByUID(t *testing.T) {
	got, err := ResolveComponentByUID("20190310", testdata.Calendar(testdata.VEvent))
	require.NoError(t, err)
	c, ok := got.Get()
	require.True(t, ok)
	assert.Equal(t, "20190310", c.UID)
	assert.True(t, c.Anchor.MustGet().Value.Equal(time.Date(2019, 3, 10, 15, 0, 0, 0, time.UTC)))

	got, err = ResolveComponentByUID("a8f5a030c6f94010a6654d79b8be5372@mirabelle", testdata.Calendar(testdata.RRuleTodo))
	require.NoError(t, err)
	assert.True(t, got.IsAbsent(), "tasks are not resolved through this path")

	got, err = ResolveComponentByUID("unknown", testdata.Calendar(testdata.VEvent))
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
}
