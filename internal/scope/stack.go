package scope

// Stack is the explicit frame stack of a traversal. Frames are pushed as
// constructs are entered and dropped when they are left.
type Stack struct {
	frames []*Scope
	marks  []int
}

// Push makes s the current frame.
func (st *Stack) Push(s *Scope) {
	st.frames = append(st.frames, s)
}

// Pop removes the current frame and returns it. It reports whether the
// frame is no longer reachable from the remaining stack, in which case
// per-frame state may be discarded.
func (st *Stack) Pop() (*Scope, bool) {
	if len(st.frames) == 0 {
		return nil, false
	}
	top := st.frames[len(st.frames)-1]
	st.frames = st.frames[:len(st.frames)-1]
	for _, f := range st.frames {
		if f == top {
			return top, false
		}
	}
	return top, true
}

// Top returns the current frame, or nil when the stack is empty.
func (st *Stack) Top() *Scope {
	if len(st.frames) == 0 {
		return nil
	}
	return st.frames[len(st.frames)-1]
}

// Depth returns the number of pushed frames.
func (st *Stack) Depth() int {
	return len(st.frames)
}

// Mark remembers the current depth, e.g. on entering a block.
func (st *Stack) Mark() {
	st.marks = append(st.marks, len(st.frames))
}

// Unwind pops every frame pushed since the last Mark and returns those that
// are no longer reachable.
func (st *Stack) Unwind() []*Scope {
	if len(st.marks) == 0 {
		return nil
	}
	mark := st.marks[len(st.marks)-1]
	st.marks = st.marks[:len(st.marks)-1]
	var dropped []*Scope
	for len(st.frames) > mark {
		if s, gone := st.Pop(); gone {
			dropped = append(dropped, s)
		}
	}
	return dropped
}

// Truncate pops frames until depth remain, forgetting marks set above it,
// and returns the frames that are no longer reachable.
func (st *Stack) Truncate(depth int) []*Scope {
	for len(st.marks) > 0 && st.marks[len(st.marks)-1] > depth {
		st.marks = st.marks[:len(st.marks)-1]
	}
	var dropped []*Scope
	for len(st.frames) > depth {
		if s, gone := st.Pop(); gone {
			dropped = append(dropped, s)
		}
	}
	return dropped
}
