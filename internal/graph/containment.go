package graph

// openRange is one entry on the containment stack: a definition whose
// byte range is still open at the current scan position.
type openRange struct {
	ID      string
	Name    string
	EndByte uint
}

// ContainmentContext infers CONTAINS parents from byte-range nesting.
// Definitions must be fed in (start byte ascending, end byte descending)
// order; the stack then always holds the chain of currently-open
// enclosing ranges, with the nearest encloser on top.
type ContainmentContext struct {
	stack []openRange
}

// Update pops every range that ends at or before the given start
// offset. Call before reading the parent for a definition starting
// there.
func (c *ContainmentContext) Update(startByte uint) {
	for len(c.stack) > 0 && c.stack[len(c.stack)-1].EndByte <= startByte {
		c.stack = c.stack[:len(c.stack)-1]
	}
}

// Push opens a new containing range. Only Container and Callable
// definitions are pushed; Data entities cannot contain others.
func (c *ContainmentContext) Push(id, name string, endByte uint) {
	c.stack = append(c.stack, openRange{ID: id, Name: name, EndByte: endByte})
}

// Parent returns the node ID of the nearest open encloser, or "" when
// the stack is empty (the definition is file-scoped).
func (c *ContainmentContext) Parent() string {
	if len(c.stack) == 0 {
		return ""
	}
	return c.stack[len(c.stack)-1].ID
}

// Path returns the names of all open enclosers, outermost first. Used
// to build qualified node IDs.
func (c *ContainmentContext) Path() []string {
	if len(c.stack) == 0 {
		return nil
	}
	names := make([]string, len(c.stack))
	for i, r := range c.stack {
		names[i] = r.Name
	}
	return names
}

// Depth returns the current nesting depth.
func (c *ContainmentContext) Depth() int {
	return len(c.stack)
}
