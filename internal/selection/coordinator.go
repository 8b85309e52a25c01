// Package selection holds the tool currently selected across all
// presentation surfaces and fans changes out to subscribers.
package selection

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fentz26/toolbench/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

// StateKey is the store key the selection is persisted under.
const StateKey = "selection.tool"

// persistTimeout bounds one background write.
const persistTimeout = 5 * time.Second

// KV is the key/value store the selection is persisted to.
// *store.Store satisfies it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Handler receives the new selection. A nil tool means the selection was
// cleared.
type Handler func(tool *models.ParsedTool)

// record is the persisted shape of a selection.
type record struct {
	FullIdentifier string          `json:"fullIdentifier"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Server         string          `json:"server"`
	InputSchema    json.RawMessage `json:"inputSchema,omitempty"`
}

type subscription struct {
	id      uint64
	handler Handler
}

// Coordinator owns the selected tool. Construct one per process and pass it
// to every surface that needs it.
//
// Handlers run synchronously inside Select, in registration order. A
// handler must not call Select itself: nothing stops the recursion.
type Coordinator struct {
	kv  KV
	log logrus.FieldLogger

	mu       sync.Mutex
	selected *models.ParsedTool
	subs     []subscription
	nextID   uint64
	seq      uint64

	writeMu sync.Mutex
	written uint64
	wg      conc.WaitGroup
}

// New creates a coordinator and restores the last persisted selection.
// A missing or malformed record leaves the selection empty.
func New(ctx context.Context, kv KV, log logrus.FieldLogger) *Coordinator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Coordinator{
		kv:  kv,
		log: log.WithField("component", "selection"),
	}
	c.selected = c.restore(ctx)
	return c
}

func (c *Coordinator) restore(ctx context.Context) *models.ParsedTool {
	if c.kv == nil {
		return nil
	}
	data, ok, err := c.kv.Get(ctx, StateKey)
	if err != nil {
		c.log.WithError(err).Warn("reading persisted selection failed")
		return nil
	}
	if !ok || len(data) == 0 {
		return nil
	}

	var rec *record
	if err := json.Unmarshal(data, &rec); err != nil {
		c.log.WithError(err).Debug("ignoring malformed persisted selection")
		return nil
	}
	if rec == nil || rec.FullIdentifier == "" || rec.Name == "" || rec.Server == "" {
		return nil
	}

	return &models.ParsedTool{
		FullIdentifier: rec.FullIdentifier,
		Name:           rec.Name,
		Server:         rec.Server,
		Description:    rec.Description,
		InputSchema:    rec.InputSchema,
	}
}

// Selected returns a copy of the selected tool, or nil.
func (c *Coordinator) Selected() *models.ParsedTool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.selected)
}

// Select replaces the selection, notifies every subscriber and schedules a
// background write. Selecting the same tool twice notifies twice. A nil
// tool clears the selection.
func (c *Coordinator) Select(tool *models.ParsedTool) {
	c.mu.Lock()
	c.selected = clone(tool)
	c.seq++
	seq := c.seq
	subs := append([]subscription(nil), c.subs...)
	c.mu.Unlock()

	for _, s := range subs {
		s.handler(clone(tool))
	}

	c.persist(seq, clone(tool))
}

// Clear is Select(nil).
func (c *Coordinator) Clear() {
	c.Select(nil)
}

// Subscribe registers h for every later Select. The returned function
// removes the registration and may be called more than once.
func (c *Coordinator) Subscribe(h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// persist writes the selection in the background. Failures are logged and
// dropped. A write that lost the race to a newer selection is skipped so
// the store always ends on the last Select.
func (c *Coordinator) persist(seq uint64, tool *models.ParsedTool) {
	if c.kv == nil {
		return
	}

	value := []byte("null")
	if tool != nil {
		value = c.encode(tool)
	}

	c.wg.Go(func() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		if seq < c.written {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := c.kv.Set(ctx, StateKey, value); err != nil {
			c.log.WithError(err).Warn("persisting selection failed")
			return
		}
		c.written = seq
	})
}

// encode marshals the persisted fields of tool. A schema that is not valid
// JSON is left out so the write still happens under its sequence number.
func (c *Coordinator) encode(tool *models.ParsedTool) []byte {
	rec := record{
		FullIdentifier: tool.FullIdentifier,
		Name:           tool.Name,
		Description:    tool.Description,
		Server:         tool.Server,
		InputSchema:    tool.InputSchema,
	}
	data, err := json.Marshal(rec)
	if err == nil {
		return data
	}

	c.log.WithError(err).WithField("tool", tool.FullIdentifier).Warn("persisting selection without its input schema")
	rec.InputSchema = nil
	data, err = json.Marshal(rec)
	if err != nil {
		c.log.WithError(err).Warn("encoding selection failed")
		return []byte("null")
	}
	return data
}

// Flush waits for every scheduled write to finish.
func (c *Coordinator) Flush() {
	c.wg.Wait()
}

func clone(t *models.ParsedTool) *models.ParsedTool {
	if t == nil {
		return nil
	}
	c := *t
	if t.InputSchema != nil {
		c.InputSchema = append([]byte(nil), t.InputSchema...)
	}
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	return &c
}
