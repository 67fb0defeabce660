// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package litmus

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aclements/weavemc/event"
	"github.com/aclements/weavemc/explore"
	"github.com/aclements/weavemc/graph"
)

// maxLocalSteps bounds how many local instructions a thread may run
// between two memory accesses.
const maxLocalSteps = 100000

// An Outcome is the final state of a complete execution.
type Outcome struct {
	// Regs holds the registers of every thread, keyed by
	// "tN.reg", where N is the thread ID. The main thread is t0
	// and spawned threads are numbered in spawn order.
	Regs map[string]uint64
	// Mem holds the coherence-latest value of every global.
	Mem map[string]uint64
	// Ret is the value main returned.
	Ret uint64
}

func (o Outcome) String() string {
	var parts []string
	for k, v := range o.Regs {
		parts = append(parts, fmt.Sprintf("%s=%d", k, v))
	}
	for k, v := range o.Mem {
		parts = append(parts, fmt.Sprintf("%s=%d", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

type thread struct {
	tid  event.ThreadID
	code *Thread
	pc   int
	regs map[string]event.Scalar
	done bool
}

// kind returns the kind of t's next instruction.
func (t *thread) kind() event.ActionKind {
	if t.done || t.pc >= len(t.code.code) {
		return event.NonLoad
	}
	return t.code.code[t.pc].op.kind()
}

func (t *thread) val(o operand) event.Scalar {
	if o.reg != "" {
		return t.regs[o.reg]
	}
	return event.Val(o.imm)
}

func (t *thread) addr(a address) uint64 {
	if a.reg != "" {
		return t.regs[a.reg].Value + a.off
	}
	return a.off
}

func (t *thread) set(reg string, v event.Scalar) {
	if reg != "_" {
		t.regs[reg] = v
	}
}

// A machine runs one execution of a program.
type machine struct {
	p       *Program
	h       *explore.Handle
	threads []*thread
	ret     uint64
}

// Execute runs one execution of p, letting h schedule the threads and
// resolve every memory access.
func (p *Program) Execute(h *explore.Handle) error {
	m := &machine{p: p, h: h}
	if err := m.start(event.Main, p.threads["main"]); err != nil {
		return err
	}
	cur := event.Main
	for {
		tid, ok := h.ScheduleNext(cur, m.threads[cur].kind())
		if !ok {
			break
		}
		if err := m.step(m.threads[tid]); err != nil {
			return err
		}
		cur = tid
	}
	if p.Observe != nil && m.complete() {
		p.Observe(m.outcome(h.Graph()))
	}
	return nil
}

func (m *machine) start(tid event.ThreadID, code *Thread) error {
	t := &thread{tid: tid, code: code, regs: make(map[string]event.Scalar)}
	m.threads = append(m.threads, t)
	if err := m.advance(t); err != nil {
		return err
	}
	m.h.SetNextKind(tid, t.kind())
	return nil
}

func (m *machine) complete() bool {
	for _, t := range m.threads {
		if !t.done {
			return false
		}
	}
	return true
}

func (m *machine) outcome(g *graph.Graph) Outcome {
	o := Outcome{Regs: make(map[string]uint64), Mem: make(map[string]uint64), Ret: m.ret}
	for _, t := range m.threads {
		for reg, v := range t.regs {
			o.Regs[fmt.Sprintf("t%d.%s", t.tid, reg)] = v.Value
		}
	}
	for _, gl := range m.p.Globals {
		o.Mem[gl.Name] = g.ValueAt(gl.Addr).Value
	}
	return o
}

// old returns what memory held at addr before the program ran, or nil
// if it is not known.
func (m *machine) old(addr uint64) *event.Scalar {
	if gl, ok := m.p.byAddr[addr]; ok {
		v := gl.Value
		return &v
	}
	if graph.IsHeap(addr) {
		v := event.Uninitialized
		return &v
	}
	return nil
}

func (m *machine) errorf(t *thread, format string, args ...interface{}) error {
	line := 0
	if t.pc < len(t.code.code) {
		line = t.code.code[t.pc].line
	}
	return fmt.Errorf("%s:%d: thread %d (%s): %s", m.p.Name, line, t.tid, t.code.Name, fmt.Sprintf(format, args...))
}

// advance runs local instructions of t up to its next access to
// shared state.
func (m *machine) advance(t *thread) error {
	code := t.code.code
	for n := 0; t.pc < len(code); n++ {
		if n == maxLocalSteps {
			return m.errorf(t, "no memory access in %d instructions", maxLocalSteps)
		}
		in := &code[t.pc]
		if !in.op.local() {
			return nil
		}
		switch in.op {
		case opMov:
			t.set(in.dst, t.val(in.a))
		case opAdd:
			a, b := t.val(in.a), t.val(in.b)
			extra := a.Extra
			if extra == 0 {
				extra = b.Extra
			}
			t.set(in.dst, event.Scalar{Value: a.Value + b.Value, Extra: extra})
		case opJmp:
			t.pc = in.target
			continue
		case opBeq, opBne:
			if t.val(in.a).Value == t.val(in.b).Value == (in.op == opBeq) {
				t.pc = in.target
				continue
			}
		case opAssume:
			if t.val(in.a).Value != t.val(in.b).Value {
				return m.h.HandleUserBlock(t.tid)
			}
		case opAssert:
			if a, b := t.val(in.a), t.val(in.b); a.Value != b.Value {
				msg := in.msg
				if msg == "" {
					msg = fmt.Sprintf("%s:%d: %d != %d", m.p.Name, in.line, a.Value, b.Value)
				}
				return m.h.ReportSafety(t.tid, msg)
			}
		}
		t.pc++
	}
	return nil
}

// step runs t's next instruction that accesses shared state, followed
// by any local instructions after it. If the instruction blocks, t
// stays at it and retries when it is scheduled again.
func (m *machine) step(t *thread) error {
	h := m.h
	if t.pc >= len(t.code.code) {
		return m.finish(t, 0)
	}
	in := &t.code.code[t.pc]
	switch in.op {
	case opLd:
		addr := t.addr(in.addr)
		r, err := h.HandleLoad(t.tid, addr, in.size, in.ord, m.old(addr))
		if err != nil {
			return err
		}
		t.set(in.dst, r.Value)

	case opSt:
		addr := t.addr(in.addr)
		if _, err := h.HandleStore(t.tid, addr, in.size, in.ord, t.val(in.a), m.old(addr)); err != nil {
			return err
		}

	case opRmw:
		addr := t.addr(in.addr)
		r, err := h.HandleReadModifyWrite(t.tid, addr, in.size, in.rmw, in.ord, t.val(in.a), m.old(addr))
		if err != nil {
			return err
		}
		t.set(in.dst, r.Old)

	case opCas, opCasw:
		addr := t.addr(in.addr)
		r, err := h.HandleCompareExchange(t.tid, addr, in.size, t.val(in.a), t.val(in.b), in.ord, in.ord2, in.op == opCasw, m.old(addr))
		if err != nil {
			return err
		}
		t.set(in.dst, r.Old)
		ok := uint64(0)
		if r.Success {
			ok = 1
		}
		t.set(in.dst2, event.Val(ok))

	case opFence:
		if err := h.HandleFence(t.tid, in.ord); err != nil {
			return err
		}

	case opLock:
		addr := t.addr(in.addr)
		r, err := h.HandleMutexLock(t.tid, addr, m.old(addr))
		if err != nil || !r.Acquired {
			return err
		}

	case opTrylock:
		addr := t.addr(in.addr)
		r, err := h.HandleMutexTryLock(t.tid, addr, m.old(addr))
		if err != nil {
			return err
		}
		ok := uint64(0)
		if r.Acquired {
			ok = 1
		}
		t.set(in.dst, event.Val(ok))

	case opUnlock:
		addr := t.addr(in.addr)
		if err := h.HandleMutexUnlock(t.tid, addr, m.old(addr)); err != nil {
			return err
		}

	case opMalloc:
		align := int(t.val(in.b).Value)
		p, err := h.HandleMalloc(t.tid, int(t.val(in.a).Value), align)
		if err != nil {
			return err
		}
		t.set(in.dst, event.Ptr(p, p))

	case opFree:
		if err := h.HandleFree(t.tid, t.val(in.a).Value, int(t.val(in.b).Value)); err != nil {
			return err
		}

	case opSpawn:
		child, err := h.HandleThreadCreate(t.tid, in.thread)
		if err != nil {
			return err
		}
		t.set(in.dst, event.Val(uint64(child)))
		t.pc++
		if err := m.start(child, m.p.threads[in.thread]); err != nil {
			return err
		}
		return m.advance(t)

	case opJoin:
		ok, err := h.HandleThreadJoin(t.tid, event.ThreadID(t.val(in.a).Value))
		if err != nil || !ok {
			return err
		}

	case opBlock:
		return h.HandleUserBlock(t.tid)

	case opRet:
		return m.finish(t, t.val(in.a).Value)

	default:
		return m.errorf(t, "unexpected local instruction")
	}
	t.pc++
	return m.advance(t)
}

func (m *machine) finish(t *thread, ret uint64) error {
	if err := m.h.HandleThreadFinish(t.tid, ret); err != nil {
		return err
	}
	t.done = true
	if t.tid == event.Main {
		m.ret = ret
	}
	return nil
}
