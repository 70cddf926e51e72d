package flatten

import (
	"nikand.dev/go/heap"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/codewriter/compiler/ir"
	"github.com/slowlang/codewriter/compiler/ssa"
)

type (
	// jobs holds code waiting behind a forward label.
	// The latest pushed job runs first which gives depth-first order.
	jobs struct {
		heap.Heap[job]

		seq int
	}

	job struct {
		seq   int
		label ssa.Label

		kind jobKind
		link *ir.Link

		// handler chain or equality chain state
		block *ir.Block
		next  int
	}

	jobKind int8
)

const (
	jobLink jobKind = iota
	jobHandler
	jobCase
)

func newJobs() jobs {
	return jobs{Heap: heap.Heap[job]{Less: jobsLess}}
}

func jobsLess(d []job, i, j int) bool {
	return d[i].seq > d[j].seq
}

func (js *jobs) Push(j job) {
	js.seq++
	j.seq = js.seq

	tlog.V("flatten_job").Printw("job pushed", "seq", j.seq, "label", j.label, "kind", j.kind, "next", j.next, "from", loc.Caller(1))

	js.Heap.Push(j)
}

func (j job) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 3)

	b = e.AppendKeyInt(b, "seq", j.seq)
	b = e.AppendKeyInt(b, "label", int(j.label))
	b = e.AppendKeyInt(b, "kind", int(j.kind))

	return b
}
