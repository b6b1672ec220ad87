package checklist

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nyscmate/internal/app/session"
	"nyscmate/internal/pkg/errs"
)

type failingStore struct {
	session.Store
}

func (failingStore) PutBlob(string, []byte) error {
	return errs.Wrap(errs.ErrSessionStore, errors.New("disk full"))
}

func TestLoadStartsFromDefaults(t *testing.T) {
	c, err := Load(session.NewMemoryStore())
	require.NoError(t, err)

	items := c.Items()
	require.Len(t, items, 12)
	assert.Equal(t, "Call-up Letter (Original + 5 copies)", items[0].Text)
	assert.Zero(t, c.Progress())
}

func TestProgressRounds(t *testing.T) {
	c, err := Load(session.NewMemoryStore())
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		_, err := c.Toggle(i)
		require.NoError(t, err)
	}
	assert.Equal(t, 67, c.Progress())

	cases := []struct {
		checked, total, want int
	}{
		{0, 12, 0},
		{1, 12, 8},
		{6, 12, 50},
		{12, 12, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{0, 0, 0},
	}
	for _, tc := range cases {
		items := make([]Item, tc.total)
		for i := 0; i < tc.checked; i++ {
			items[i].Checked = true
		}
		assert.Equal(t, tc.want, Progress(items), "%d of %d", tc.checked, tc.total)
	}
}

func TestMutationsPersist(t *testing.T) {
	store := session.NewMemoryStore()
	c, err := Load(store)
	require.NoError(t, err)

	on, err := c.Toggle(3)
	require.NoError(t, err)
	assert.True(t, on)
	require.NoError(t, c.Add("  Bucket  "))
	require.NoError(t, c.Remove(0))

	reloaded, err := Load(store)
	require.NoError(t, err)
	items := reloaded.Items()
	require.Len(t, items, 12)
	assert.True(t, items[2].Checked)
	assert.Equal(t, "Bucket", items[11].Text)

	raw, err := store.GetBlob(BlobKey)
	require.NoError(t, err)
	var decoded []Item
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, items, decoded)

	require.NoError(t, reloaded.Reset())
	assert.Len(t, reloaded.Items(), 12)
	assert.Zero(t, reloaded.Progress())
}

func TestInvalidEdits(t *testing.T) {
	c, err := Load(session.NewMemoryStore())
	require.NoError(t, err)

	_, err = c.Toggle(12)
	assert.True(t, errs.IsCode(err, errs.ErrNotFound))
	assert.True(t, errs.IsCode(c.Remove(-1), errs.ErrNotFound))
	assert.True(t, errs.IsCode(c.Add(" "), errs.ErrInvalidParams))
}

func TestCorruptBlobFallsBackToDefaults(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.PutBlob(BlobKey, []byte("{not json")))

	c, err := Load(store)
	require.NoError(t, err)
	assert.Len(t, c.Items(), 12)
}

func TestFailedWriteLeavesListUnchanged(t *testing.T) {
	c, err := Load(failingStore{session.NewMemoryStore()})
	require.NoError(t, err)

	_, err = c.Toggle(0)
	assert.True(t, errs.IsCode(err, errs.ErrSessionStore))
	assert.False(t, c.Items()[0].Checked)

	assert.Error(t, c.Add("Bucket"))
	assert.Len(t, c.Items(), 12)
}
