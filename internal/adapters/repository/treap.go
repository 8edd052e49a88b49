package repository

import "math/rand/v2"

// Treap index over (rating DESC, id ASC). In-order traversal yields the
// ranking from best to worst.

type node struct {
	id     int64
	rating int
	prio   uint64
	left   *node
	right  *node
}

// less reports whether (aRating, aID) ranks before (bRating, bID).
func less(aRating int, aID int64, bRating int, bID int64) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	return y
}

type treap struct {
	root *node
	rng  *rand.Rand
}

func newTreap(seed uint64) *treap {
	return &treap{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (t *treap) insert(id int64, rating int) {
	t.root = t.insertAt(t.root, id, rating)
}

func (t *treap) insertAt(n *node, id int64, rating int) *node {
	if n == nil {
		return &node{id: id, rating: rating, prio: t.rng.Uint64()}
	}
	if less(rating, id, n.rating, n.id) {
		n.left = t.insertAt(n.left, id, rating)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = t.insertAt(n.right, id, rating)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	return n
}

func (t *treap) delete(id int64, rating int) {
	t.root = deleteNode(t.root, id, rating)
}

func deleteNode(n *node, id int64, rating int) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.id == id && n.rating == rating:
		// rotate the higher-priority child up until n is a leaf
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	case less(rating, id, n.rating, n.id):
		n.left = deleteNode(n.left, id, rating)
	default:
		n.right = deleteNode(n.right, id, rating)
	}
	return n
}

// move re-keys id from oldRating to newRating.
func (t *treap) move(id int64, oldRating, newRating int) {
	if oldRating == newRating {
		return
	}
	t.delete(id, oldRating)
	t.insert(id, newRating)
}

// walk visits ids in rank order until fn returns false.
func (t *treap) walk(fn func(id int64) bool) {
	walkNode(t.root, fn)
}

func walkNode(n *node, fn func(id int64) bool) bool {
	if n == nil {
		return true
	}
	if !walkNode(n.left, fn) {
		return false
	}
	if !fn(n.id) {
		return false
	}
	return walkNode(n.right, fn)
}

func (t *treap) reset() {
	t.root = nil
}
