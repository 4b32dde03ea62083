package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type rec struct {
	id  string
	val string
}

func (r rec) Key() string { return r.id }

func TestCollection_IngestDistinctKeysKeepsAll(t *testing.T) {
	c := NewCollection[rec]()
	for _, id := range []string{"a", "b", "c", "b", "a", "d"} {
		c.Ingest(rec{id: id})
	}
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(c.Items()))
}

func TestCollection_IngestTwiceKeepsExisting(t *testing.T) {
	once := NewCollection[rec]()
	once.Ingest(rec{id: "a", val: "first"})

	twice := NewCollection[rec]()
	assert.True(t, twice.Ingest(rec{id: "a", val: "first"}))
	assert.False(t, twice.Ingest(rec{id: "a", val: "second"}))

	assert.Equal(t, once.Items(), twice.Items())
}

func TestCollection_ReplaceOrAppendMovesToEnd(t *testing.T) {
	c := NewCollection[rec]()
	c.Reset([]rec{{id: "a"}, {id: "b", val: "old"}, {id: "c"}})

	c.ReplaceOrAppend(rec{id: "b", val: "new"})
	assert.Equal(t, []string{"a", "c", "b"}, ids(c.Items()))
	got, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "new", got.val)

	c.ReplaceOrAppend(rec{id: "d"})
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(c.Items()))
}

func TestCollection_PrependAndReset(t *testing.T) {
	c := NewCollection[rec]()
	c.Reset([]rec{{id: "a", val: "1"}, {id: "b"}, {id: "a", val: "2"}})
	assert.Equal(t, []string{"a", "b"}, ids(c.Items()))
	got, _ := c.Get("a")
	assert.Equal(t, "1", got.val)

	assert.True(t, c.Prepend(rec{id: "z"}))
	assert.False(t, c.Prepend(rec{id: "b"}))
	assert.Equal(t, []string{"z", "a", "b"}, ids(c.Items()))
	assert.True(t, c.Has("b"))
}

func TestCollection_UpdateRemoveAndCopy(t *testing.T) {
	c := NewCollection[rec]()
	c.Reset([]rec{{id: "a"}, {id: "b"}})

	assert.True(t, c.Update("b", func(r *rec) { r.val = "seen" }))
	assert.False(t, c.Update("x", func(r *rec) { r.val = "never" }))

	items := c.Items()
	items[0].val = "mutated"
	got, _ := c.Get("a")
	assert.Empty(t, got.val)

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	assert.Equal(t, []string{"b"}, ids(c.Items()))
	got, _ = c.Get("b")
	assert.Equal(t, "seen", got.val)
}
