package render

import (
	"container/list"
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
)

// ErrUnreadableFrame marks a source frame that exists in the plan but cannot
// be decoded. Re-reading it gives the same result.
var ErrUnreadableFrame = errors.New("source frame unreadable")

type FrameReadError struct {
	Index int
	Path  string
	Err   error
}

func (e *FrameReadError) Error() string {
	return fmt.Sprintf("read frame %d (%s): %v", e.Index, e.Path, e.Err)
}

func (e *FrameReadError) Unwrap() []error { return []error{ErrUnreadableFrame, e.Err} }

// frameCache keeps the most recently used decoded source frames. Consecutive
// output frames mostly share their pair, so a handful of entries is enough.
type frameCache struct {
	accessor frames.Accessor
	res      frames.Resolution
	capacity int

	order *list.List
	items map[int]*list.Element
}

type cachedFrame struct {
	index int
	img   *fimage
}

func newFrameCache(accessor frames.Accessor, res frames.Resolution, capacity int) *frameCache {
	if capacity < 2 {
		capacity = 2
	}
	return &frameCache{
		accessor: accessor,
		res:      res,
		capacity: capacity,
		order:    list.New(),
		items:    make(map[int]*list.Element),
	}
}

func (c *frameCache) get(index int) (*fimage, error) {
	if el, ok := c.items[index]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*cachedFrame).img, nil
	}

	path := c.accessor.FramePath(index, c.res)
	img, err := frames.Load(path)
	if err != nil {
		return nil, &FrameReadError{Index: index, Path: path, Err: err}
	}
	f := fromImage(img)

	c.items[index] = c.order.PushFront(&cachedFrame{index: index, img: f})
	for c.order.Len() > c.capacity {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.items, last.Value.(*cachedFrame).index)
	}
	return f, nil
}
