package status

import (
	"fmt"
	"sync"
)

// node is an in-memory stand-in for one automation object.
// values holds scalars (an error value makes the read fail), children holds
// object properties, items makes the node a 1-based collection.
type node struct {
	values   map[string]interface{}
	children map[string]*node
	items    []*node
	panics   map[string]bool
	onCall   func(name string, args []interface{}) error

	mu       sync.Mutex
	released int
}

func newNode() *node {
	return &node{
		values:   map[string]interface{}{},
		children: map[string]*node{},
		panics:   map[string]bool{},
	}
}

func (n *node) with(name string, v interface{}) *node {
	n.values[name] = v
	return n
}

func (n *node) child(name string, c *node) *node {
	n.children[name] = c
	return n
}

func collection(items ...*node) *node {
	c := newNode()
	c.items = append([]*node{}, items...)
	return c
}

func (n *node) Object(name string, args ...interface{}) (Object, error) {
	if n.panics[name] {
		panic("interop failure reading " + name)
	}
	if name == "Item" {
		if len(args) != 1 {
			return nil, fmt.Errorf("Item wants one index")
		}
		i, err := asInt(args[0])
		if err != nil {
			return nil, err
		}
		if i < 1 || int(i) > len(n.items) {
			return nil, fmt.Errorf("index %d out of range", i)
		}
		item := n.items[i-1]
		if item == nil {
			return nil, fmt.Errorf("item %d unreadable", i)
		}
		return item, nil
	}
	c, ok := n.children[name]
	if !ok {
		return nil, fmt.Errorf("no property %s", name)
	}
	return c, nil
}

func (n *node) Value(name string) (interface{}, error) {
	if n.panics[name] {
		panic("interop failure reading " + name)
	}
	v, ok := n.values[name]
	if !ok {
		if name == "Count" && n.items != nil {
			return int32(len(n.items)), nil
		}
		return nil, fmt.Errorf("no property %s", name)
	}
	if err, isErr := v.(error); isErr {
		return nil, err
	}
	return v, nil
}

func (n *node) Call(name string, args ...interface{}) error {
	if n.onCall == nil {
		return fmt.Errorf("no method %s", name)
	}
	return n.onCall(name, args)
}

func (n *node) Release() {
	n.mu.Lock()
	n.released++
	n.mu.Unlock()
}

type fakeSession struct {
	app    Object
	mu     sync.Mutex
	closed int
}

func (s *fakeSession) Application() Object {
	if s.app == nil {
		return nil
	}
	return s.app
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// panicApp panics on every access, standing in for a broken interop layer.
type panicApp struct{}

func (panicApp) Object(string, ...interface{}) (Object, error) { panic("rpc server unavailable") }
func (panicApp) Value(string) (interface{}, error)             { panic("rpc server unavailable") }
func (panicApp) Call(string, ...interface{}) error              { panic("rpc server unavailable") }
func (panicApp) Release()                                       {}

func connectorFor(s *fakeSession) Connector {
	return ConnectorFunc(func() (Session, error) { return s, nil })
}

// mediaShape builds a shape of type msoMedia with the given MediaFormat values.
func mediaShape(lengthMs, positionMs, volume int32, playing, muted bool, name string) *node {
	mf := newNode().
		with("Length", lengthMs).
		with("CurrentPosition", positionMs).
		with("Volume", volume).
		with("IsPlaying", playing).
		with("Muted", muted).
		with("Name", name)
	return newNode().with("Type", int32(msoMedia)).child("MediaFormat", mf)
}

// textShape builds a non-media shape (msoTextBox).
func textShape() *node {
	return newNode().with("Type", int32(17))
}

func slideNode(index int, shapes ...*node) *node {
	return newNode().with("SlideIndex", int32(index)).child("Shapes", collection(shapes...))
}

// presentationNode builds a presentation with slideCount slides whose
// editing window selects selected (nil for an empty selection).
func presentationNode(slideCount int, selected *node) *node {
	slides := newNode().with("Count", int32(slideCount))
	var rng *node
	if selected != nil {
		rng = collection(selected)
	} else {
		rng = collection()
	}
	window := newNode().child("Selection", newNode().child("SlideRange", rng))
	return newNode().child("Slides", slides).child("Windows", collection(window))
}

// appNode builds an application with pres active and, when shown is not
// nil, a running slideshow on shown.
func appNode(pres *node, shown *node) *node {
	a := newNode().child("Presentations", collection(pres)).child("ActivePresentation", pres)
	if shown != nil {
		window := newNode().child("View", newNode().child("Slide", shown))
		a.child("SlideShowWindows", collection(window))
	} else {
		a.child("SlideShowWindows", collection())
	}
	return a
}
