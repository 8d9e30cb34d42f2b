package engine

// crawlTask is one category waiting to be expanded.
type crawlTask struct {
	category string
	depth    int

	// path holds the canonical titles of the ancestors of category, root
	// first. Only maintained for the path revisit policy.
	path []string
}

func (t crawlTask) onPath(category string) bool {
	key := CanonicalTitle(category)
	for _, p := range t.path {
		if p == key {
			return true
		}
	}
	return false
}

func (t crawlTask) child(category string, trackPath bool) crawlTask {
	c := crawlTask{category: category, depth: t.depth + 1}
	if trackPath {
		c.path = make([]string, len(t.path), len(t.path)+1)
		copy(c.path, t.path)
		c.path = append(c.path, CanonicalTitle(t.category))
	}
	return c
}

// Frontier is the LIFO worklist that replaces recursion in the category
// walk. Popping in reverse push order keeps a preorder depth-first traversal
// when children are pushed in reverse listing order.
type Frontier struct {
	stack []crawlTask
}

// NewFrontier creates an empty worklist.
func NewFrontier() *Frontier {
	return &Frontier{}
}

// Push adds a task.
func (f *Frontier) Push(t crawlTask) {
	f.stack = append(f.stack, t)
}

// PushChildren pushes children so that the first one is popped first.
func (f *Frontier) PushChildren(children []crawlTask) {
	for i := len(children) - 1; i >= 0; i-- {
		f.Push(children[i])
	}
}

// Pop removes the most recently pushed task.
func (f *Frontier) Pop() (crawlTask, bool) {
	if len(f.stack) == 0 {
		return crawlTask{}, false
	}
	t := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return t, true
}

// Len returns the number of pending tasks.
func (f *Frontier) Len() int {
	return len(f.stack)
}

// Snapshot returns the pending tasks in push order without removing them.
func (f *Frontier) Snapshot() []crawlTask {
	return append([]crawlTask(nil), f.stack...)
}
