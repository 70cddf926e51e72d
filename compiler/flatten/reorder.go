package flatten

import (
	"tlog.app/go/errors"
	"tlog.app/go/tlog/tlwire"
)

type (
	// Slot is a copy endpoint: a value or the scratch cell.
	Slot[T comparable] struct {
		Val     T
		Scratch bool
	}

	// Copy moves the content of From into To.
	Copy[T comparable] struct {
		From, To Slot[T]
	}
)

func Val[T comparable](x T) Slot[T] { return Slot[T]{Val: x} }

func Scratch[T comparable]() Slot[T] { return Slot[T]{Scratch: true} }

// Reorder turns the parallel assignment to[i] := from[i] into a sequence of
// copies. Pairs with equal ends are dropped. A cycle is cut at its first
// pending pair in source order by saving its source to the scratch cell,
// which is restored once the rest of the cycle is done. At most one value
// lives in the scratch cell at a time.
func Reorder[T comparable](from, to []T) (res []Copy[T], err error) {
	if len(from) != len(to) {
		return nil, errors.Wrap(ErrRenameLength, "%d sources, %d targets", len(from), len(to))
	}

	src := make([]Slot[T], len(from))
	pending := make([]int, 0, len(from))

	for i := range from {
		src[i] = Val(from[i])

		if from[i] != to[i] {
			pending = append(pending, i)
		}
	}

	read := make(map[Slot[T]]struct{}, len(pending))

	for len(pending) != 0 {
		clear(read)

		for _, i := range pending {
			read[src[i]] = struct{}{}
		}

		n := len(pending)
		still := pending[:0]

		for _, i := range pending {
			dst := Val(to[i])

			if _, ok := read[dst]; ok {
				still = append(still, i)
				continue
			}

			res = append(res, Copy[T]{From: src[i], To: dst})
		}

		if len(still) < n {
			pending = still
			continue
		}

		// only cycles left
		i := pending[0]

		if src[i].Scratch {
			panic("reorder: scratch cell reused")
		}

		res = append(res, Copy[T]{From: src[i], To: Scratch[T]()})
		src[i] = Scratch[T]()
	}

	return res, nil
}

func (c Copy[T]) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	switch {
	case c.To.Scratch:
		return e.AppendFormat(b, "%v -> scratch", c.From.Val)
	case c.From.Scratch:
		return e.AppendFormat(b, "scratch -> %v", c.To.Val)
	default:
		return e.AppendFormat(b, "%v -> %v", c.From.Val, c.To.Val)
	}
}
