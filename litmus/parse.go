// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package litmus parses and runs small concurrent programs written in
// a line-oriented assembly language.
//
// A program declares global variables and threads:
//
//	init x 0        # global x, initially 0
//	var buf         # global buf, uninitialized
//	mutex m         # global m, an unlocked mutex
//
//	thread main
//		spawn t1 worker
//		spawn t2 worker
//		join t1
//		join t2
//		ld r x
//		assert r 2 "lost update"
//
//	thread worker
//		rmw _ add x 1 rlx
//
// Globals must be declared before they are used. Execution starts in
// thread main. Every thread has its own registers, which start at 0.
// Operands are registers, numbers, or &name for the address of a
// global. Addresses are name, name+off, *reg, *reg+off or a number. An instruction name may carry an access size in bytes, as
// in ld.4. The default size is 8.
//
// Memory instructions take an optional memory ordering (na, rlx, acq,
// rel, acqrel, sc):
//
//	ld REG ADDR [ORD]                   load (default na)
//	st ADDR VAL [ORD]                   store (default na)
//	rmw REG OP ADDR VAL [ORD]           read-modify-write, REG gets the old value (default sc)
//	cas OLD OK ADDR EXP NEW [SUCC [FAIL]]  compare-exchange (default sc)
//	casw OLD OK ADDR EXP NEW [SUCC [FAIL]] weak compare-exchange
//	fence ORD
//
// Mutexes, heap memory and threads:
//
//	lock ADDR, trylock REG ADDR, unlock ADDR
//	malloc REG SIZE [ALIGN], free VAL SIZE
//	spawn REG THREAD, join REG, block, ret [VAL]
//
// Local instructions do not touch shared memory:
//
//	mov REG VAL, add REG VAL VAL
//	jmp LABEL, beq VAL VAL LABEL, bne VAL VAL LABEL
//	assume VAL VAL           block the thread unless equal
//	assert VAL VAL [MSG]     report a failure unless equal
//
// A line starting with NAME: defines a label. # starts a comment.
package litmus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aclements/weavemc/event"
	"github.com/kballard/go-shellquote"
)

// GlobalBase is the address of the first global variable.
const GlobalBase = 0x100

// A Global is a global variable.
type Global struct {
	Name  string
	Addr  uint64
	Value event.Scalar
}

// A Thread is the code of a thread. Many threads may run the same
// code.
type Thread struct {
	Name string
	code []instr
}

// A Program is a parsed litmus program.
type Program struct {
	Name    string
	Globals []*Global
	Threads []*Thread

	// Observe, if not nil, is called with the final state of
	// every complete execution. It may be called concurrently
	// when exploring in parallel.
	Observe func(Outcome)

	globals map[string]*Global
	byAddr  map[uint64]*Global
	threads map[string]*Thread
}

type opcode uint8

const (
	opLd opcode = iota
	opSt
	opRmw
	opCas
	opCasw
	opFence
	opLock
	opTrylock
	opUnlock
	opMalloc
	opFree
	opSpawn
	opJoin
	opBlock
	opRet
	opMov
	opAdd
	opJmp
	opBeq
	opBne
	opAssume
	opAssert
)

var opcodes = map[string]opcode{
	"ld": opLd, "st": opSt, "rmw": opRmw, "cas": opCas, "casw": opCasw, "fence": opFence,
	"lock": opLock, "trylock": opTrylock, "unlock": opUnlock,
	"malloc": opMalloc, "free": opFree,
	"spawn": opSpawn, "join": opJoin, "block": opBlock, "ret": opRet,
	"mov": opMov, "add": opAdd, "jmp": opJmp, "beq": opBeq, "bne": opBne,
	"assume": opAssume, "assert": opAssert,
}

// local reports whether op runs without calling the driver, unless it
// fails.
func (op opcode) local() bool {
	return op >= opMov
}

func (op opcode) kind() event.ActionKind {
	switch op {
	case opLd, opRmw, opCas, opCasw, opLock, opTrylock:
		return event.Load
	}
	return event.NonLoad
}

type operand struct {
	reg string
	imm uint64
}

// An address is reg+off if reg is set, and otherwise off.
type address struct {
	reg string
	off uint64
}

type instr struct {
	op         opcode
	line       int
	size       int
	dst, dst2  string
	addr       address
	a, b       operand
	ord, ord2  event.Ordering
	rmw        event.RMWOp
	target     int
	thread     string
	label, msg string
}

// ParseFile parses the program in the named file.
func ParseFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(path, f)
}

type parser struct {
	p      *Program
	name   string
	line   int
	cur    *Thread
	labels map[*Thread]map[string]int
}

func (ps *parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%s:%d: %s", ps.name, ps.line, fmt.Sprintf(format, args...))
}

// Parse parses a program read from r. name is used in error messages.
func Parse(name string, r io.Reader) (*Program, error) {
	ps := &parser{
		p: &Program{
			Name:    name,
			globals: make(map[string]*Global),
			byAddr:  make(map[uint64]*Global),
			threads: make(map[string]*Thread),
		},
		name:   name,
		labels: make(map[*Thread]map[string]int),
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		ps.line++
		words, err := shellquote.Split(sc.Text())
		if err != nil {
			return nil, ps.errorf("%v", err)
		}
		for i, w := range words {
			if strings.HasPrefix(w, "#") {
				words = words[:i]
				break
			}
		}
		if err := ps.parseLine(words); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := ps.resolve(); err != nil {
		return nil, err
	}
	return ps.p, nil
}

func (ps *parser) parseLine(words []string) error {
	if len(words) > 0 && strings.HasSuffix(words[0], ":") {
		if ps.cur == nil {
			return ps.errorf("label outside of a thread")
		}
		label := strings.TrimSuffix(words[0], ":")
		labels := ps.labels[ps.cur]
		if _, ok := labels[label]; ok {
			return ps.errorf("label %s redefined", label)
		}
		labels[label] = len(ps.cur.code)
		words = words[1:]
	}
	if len(words) == 0 {
		return nil
	}
	switch words[0] {
	case "init", "var", "mutex":
		return ps.parseGlobal(words)
	case "thread":
		if len(words) != 2 {
			return ps.errorf("usage: thread NAME")
		}
		if _, ok := ps.p.threads[words[1]]; ok {
			return ps.errorf("thread %s redefined", words[1])
		}
		ps.cur = &Thread{Name: words[1]}
		ps.p.threads[words[1]] = ps.cur
		ps.p.Threads = append(ps.p.Threads, ps.cur)
		ps.labels[ps.cur] = make(map[string]int)
		return nil
	}
	if ps.cur == nil {
		return ps.errorf("instruction outside of a thread")
	}
	in, err := ps.parseInstr(words)
	if err != nil {
		return ps.errorf("%v", err)
	}
	ps.cur.code = append(ps.cur.code, in)
	return nil
}

func (ps *parser) parseGlobal(words []string) error {
	var val event.Scalar
	switch words[0] {
	case "init":
		if len(words) != 3 {
			return ps.errorf("usage: init NAME VALUE")
		}
		v, err := parseNumber(words[2])
		if err != nil {
			return ps.errorf("%v", err)
		}
		val = event.Val(v)
	case "var":
		if len(words) != 2 {
			return ps.errorf("usage: var NAME")
		}
		val = event.Uninitialized
	case "mutex":
		if len(words) != 2 {
			return ps.errorf("usage: mutex NAME")
		}
		val = event.Val(event.MutexUnlocked)
	}
	name := words[1]
	if !isIdent(name) {
		return ps.errorf("bad global name %q", name)
	}
	if _, ok := ps.p.globals[name]; ok {
		return ps.errorf("global %s redefined", name)
	}
	g := &Global{Name: name, Addr: GlobalBase + 8*uint64(len(ps.p.Globals)), Value: val}
	ps.p.Globals = append(ps.p.Globals, g)
	ps.p.globals[name] = g
	ps.p.byAddr[g.Addr] = g
	return nil
}

// argCounts gives the minimum and maximum number of arguments of each
// instruction.
var argCounts = map[opcode][2]int{
	opLd: {2, 3}, opSt: {2, 3}, opRmw: {4, 5}, opCas: {5, 7}, opCasw: {5, 7}, opFence: {1, 1},
	opLock: {1, 1}, opTrylock: {2, 2}, opUnlock: {1, 1},
	opMalloc: {2, 3}, opFree: {2, 2},
	opSpawn: {2, 2}, opJoin: {1, 1}, opBlock: {0, 0}, opRet: {0, 1},
	opMov: {2, 2}, opAdd: {3, 3}, opJmp: {1, 1}, opBeq: {3, 3}, opBne: {3, 3},
	opAssume: {2, 2}, opAssert: {2, 3},
}

func (ps *parser) parseInstr(words []string) (instr, error) {
	name, size := words[0], 8
	if i := strings.IndexByte(name, '.'); i >= 0 {
		n, err := strconv.Atoi(name[i+1:])
		if err != nil || (n != 1 && n != 2 && n != 4 && n != 8) {
			return instr{}, fmt.Errorf("bad access size in %s", name)
		}
		name, size = name[:i], n
	}
	op, ok := opcodes[name]
	if !ok {
		return instr{}, fmt.Errorf("unknown instruction %s", name)
	}
	args := words[1:]
	if c := argCounts[op]; len(args) < c[0] || len(args) > c[1] {
		if c[0] == c[1] {
			return instr{}, fmt.Errorf("%s takes %d arguments", name, c[0])
		}
		return instr{}, fmt.Errorf("%s takes %d to %d arguments", name, c[0], c[1])
	}
	in := instr{op: op, line: ps.line, size: size}

	var err error
	reg := func(s string) string {
		if err == nil && !isIdent(s) {
			err = fmt.Errorf("bad register %q", s)
		}
		return s
	}
	val := func(s string) operand {
		o, e := ps.parseOperand(s)
		if err == nil {
			err = e
		}
		return o
	}
	addr := func(s string) address {
		a, e := ps.parseAddress(s)
		if err == nil {
			err = e
		}
		return a
	}
	ord := func(i int, def event.Ordering) event.Ordering {
		if i >= len(args) {
			return def
		}
		o, e := event.ParseOrdering(args[i])
		if err == nil {
			err = e
		}
		return o
	}

	switch op {
	case opLd:
		in.dst, in.addr, in.ord = reg(args[0]), addr(args[1]), ord(2, event.NotAtomic)
	case opSt:
		in.addr, in.a, in.ord = addr(args[0]), val(args[1]), ord(2, event.NotAtomic)
	case opRmw:
		in.dst = reg(args[0])
		rmw, e := event.ParseRMWOp(args[1])
		if err == nil {
			err = e
		}
		in.rmw = rmw
		in.addr, in.a, in.ord = addr(args[2]), val(args[3]), ord(4, event.SeqCst)
	case opCas, opCasw:
		in.dst, in.dst2 = reg(args[0]), reg(args[1])
		in.addr, in.a, in.b = addr(args[2]), val(args[3]), val(args[4])
		in.ord = ord(5, event.SeqCst)
		in.ord2 = ord(6, in.ord.Load())
	case opFence:
		in.ord = ord(0, event.SeqCst)
	case opLock, opUnlock:
		in.addr = addr(args[0])
	case opTrylock:
		in.dst, in.addr = reg(args[0]), addr(args[1])
	case opMalloc:
		in.dst, in.a = reg(args[0]), val(args[1])
		if len(args) > 2 {
			in.b = val(args[2])
		}
	case opFree:
		in.a, in.b = val(args[0]), val(args[1])
	case opSpawn:
		in.dst, in.thread = reg(args[0]), args[1]
	case opJoin:
		in.a = val(args[0])
	case opRet:
		if len(args) > 0 {
			in.a = val(args[0])
		}
	case opMov:
		in.dst, in.a = reg(args[0]), val(args[1])
	case opAdd:
		in.dst, in.a, in.b = reg(args[0]), val(args[1]), val(args[2])
	case opJmp:
		in.label = args[0]
	case opBeq, opBne:
		in.a, in.b, in.label = val(args[0]), val(args[1]), args[2]
	case opAssume:
		in.a, in.b = val(args[0]), val(args[1])
	case opAssert:
		in.a, in.b = val(args[0]), val(args[1])
		if len(args) > 2 {
			in.msg = args[2]
		}
	}
	return in, err
}

func (ps *parser) parseOperand(s string) (operand, error) {
	if strings.HasPrefix(s, "&") {
		g, ok := ps.p.globals[s[1:]]
		if !ok {
			return operand{}, fmt.Errorf("undeclared global %s", s[1:])
		}
		return operand{imm: g.Addr}, nil
	}
	if isIdent(s) {
		return operand{reg: s}, nil
	}
	v, err := parseNumber(s)
	return operand{imm: v}, err
}

func (ps *parser) parseAddress(s string) (address, error) {
	base, off := s, uint64(0)
	if i := strings.IndexByte(s, '+'); i >= 0 {
		var err error
		base = s[:i]
		if off, err = parseNumber(s[i+1:]); err != nil {
			return address{}, err
		}
	}
	if strings.HasPrefix(base, "*") {
		if !isIdent(base[1:]) {
			return address{}, fmt.Errorf("bad register %q", base[1:])
		}
		return address{reg: base[1:], off: off}, nil
	}
	if isIdent(base) {
		g, ok := ps.p.globals[base]
		if !ok {
			return address{}, fmt.Errorf("undeclared global %s", base)
		}
		return address{off: g.Addr + off}, nil
	}
	v, err := parseNumber(base)
	return address{off: v + off}, err
}

// resolve checks references between threads and resolves labels.
func (ps *parser) resolve() error {
	if _, ok := ps.p.threads["main"]; !ok {
		return fmt.Errorf("%s: no main thread", ps.name)
	}
	for _, t := range ps.p.Threads {
		for i := range t.code {
			in := &t.code[i]
			ps.line = in.line
			switch in.op {
			case opSpawn:
				if _, ok := ps.p.threads[in.thread]; !ok {
					return ps.errorf("unknown thread %s", in.thread)
				}
			case opJmp, opBeq, opBne:
				pc, ok := ps.labels[t][in.label]
				if !ok {
					return ps.errorf("unknown label %s", in.label)
				}
				in.target = pc
			}
		}
	}
	return nil
}

func parseNumber(s string) (uint64, error) {
	if strings.HasPrefix(s, "-") {
		v, err := strconv.ParseInt(s, 0, 64)
		return uint64(v), err
	}
	return strconv.ParseUint(s, 0, 64)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case '0' <= r && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
