// Package checklist tracks the camp requirements list and how much of it is done.
package checklist

import (
	"encoding/json"
	"math"
	"strings"
	"sync"

	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
)

// BlobKey is the slot the list is persisted under.
const BlobKey = "nysc_checklist"

// DefaultItems is the list a new user starts with.
var DefaultItems = []string{
	"Call-up Letter (Original + 5 copies)",
	"Green Card (Original + 5 copies)",
	"School ID Card (Original + 5 copies)",
	"Statement of Result / Certificate",
	"Medical Fitness Certificate",
	"Passport Photographs (16 copies)",
	"White Round-neck T-shirts (4+)",
	"White Shorts (4+)",
	"White Tennis Shoes",
	"Mosquito Net",
	"Power Bank",
	"Toiletries (Soap, Dettol, etc.)",
}

// Item is one entry.
type Item struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// BlobStore is where the list is kept. session.Store satisfies it.
type BlobStore interface {
	GetBlob(key string) ([]byte, error)
	PutBlob(key string, data []byte) error
}

// Checklist is the persisted list. Every mutation is written through before it returns.
type Checklist struct {
	store BlobStore

	mu    sync.Mutex
	items []Item
}

// Load reads the list from store, falling back to the defaults when nothing is stored
// or the stored blob is unreadable.
func Load(store BlobStore) (*Checklist, error) {
	c := &Checklist{store: store}

	data, err := store.GetBlob(BlobKey)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		var items []Item
		if err := json.Unmarshal(data, &items); err != nil {
			logx.Warn("Stored checklist is corrupt, starting from defaults", "error", err.Error())
		} else {
			c.items = items
		}
	}
	if c.items == nil {
		c.items = defaults()
	}
	return c, nil
}

func defaults() []Item {
	items := make([]Item, len(DefaultItems))
	for i, text := range DefaultItems {
		items[i] = Item{Text: text}
	}
	return items
}

// Items returns a copy of the list.
func (c *Checklist) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Item(nil), c.items...)
}

// Toggle flips the item at index and returns its new state.
func (c *Checklist) Toggle(index int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.items) {
		return false, errs.NewError(errs.ErrNotFound)
	}
	c.items[index].Checked = !c.items[index].Checked
	if err := c.saveLocked(); err != nil {
		c.items[index].Checked = !c.items[index].Checked
		return false, err
	}
	return c.items[index].Checked, nil
}

// Add appends an unchecked item.
func (c *Checklist) Add(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = append(c.items, Item{Text: text})
	if err := c.saveLocked(); err != nil {
		c.items = c.items[:len(c.items)-1]
		return err
	}
	return nil
}

// Remove deletes the item at index.
func (c *Checklist) Remove(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.items) {
		return errs.NewError(errs.ErrNotFound)
	}
	prev := c.items
	c.items = append(append([]Item(nil), prev[:index]...), prev[index+1:]...)
	if err := c.saveLocked(); err != nil {
		c.items = prev
		return err
	}
	return nil
}

// Reset restores the default list with nothing checked.
func (c *Checklist) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.items
	c.items = defaults()
	if err := c.saveLocked(); err != nil {
		c.items = prev
		return err
	}
	return nil
}

// Progress returns the completion percentage, rounded half away from zero. An empty list is 0.
func (c *Checklist) Progress() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Progress(c.items)
}

// Progress computes round(100 * checked / total).
func Progress(items []Item) int {
	if len(items) == 0 {
		return 0
	}
	checked := 0
	for _, it := range items {
		if it.Checked {
			checked++
		}
	}
	return int(math.Round(100 * float64(checked) / float64(len(items))))
}

func (c *Checklist) saveLocked() error {
	data, err := json.Marshal(c.items)
	if err != nil {
		return errs.Wrap(errs.ErrUnknown, err)
	}
	return c.store.PutBlob(BlobKey, data)
}
