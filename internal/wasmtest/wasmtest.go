// Package wasmtest hand-encodes tiny core-wasm guests that import the
// preview1 host module, for tests that run real guests under wazero.
package wasmtest

import "bytes"

const moduleName = "wasi_snapshot_preview1"

const (
	valI32 = 0x7f

	opCall     = 0x10
	opDrop     = 0x1a
	opI32Load  = 0x28
	opI32Store = 0x36
	opI32Const = 0x41
	opEnd      = 0x0b
)

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func wasmName(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, content []byte) []byte {
	out := append([]byte{id}, uleb(uint32(len(content)))...)
	return append(out, content...)
}

func funcType(params, results []byte) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint32(len(params)))...)
	out = append(out, params...)
	out = append(out, uleb(uint32(len(results)))...)
	return append(out, results...)
}

func i32Const(v int32) []byte {
	return append([]byte{opI32Const}, sleb(v)...)
}

func callFunc(idx uint32) []byte {
	return append([]byte{opCall}, uleb(idx)...)
}

func body(instrs ...[]byte) []byte {
	code := []byte{0x00} // no locals
	for _, in := range instrs {
		code = append(code, in...)
	}
	code = append(code, opEnd)
	return append(uleb(uint32(len(code))), code...)
}

// Guest memory layout of Hello.
const (
	HelloIovec    = 0
	HelloNwritten = 8
	HelloText     = 16
	ArgcPtr       = 100
	ArgvBufPtr    = 104
)

// Hello builds a guest that writes "hello\n" to fd 1 from _start and
// then calls proc_exit(exit) when exit is not negative. Its "args" export
// returns the errno of args_sizes_get(100, 104).
func Hello(exit int32) []byte {
	const (
		fdWrite = iota
		procExit
		argsSizesGet
		start
		args
	)
	types := section(1, vec(
		funcType([]byte{valI32, valI32, valI32, valI32}, []byte{valI32}),
		funcType([]byte{valI32}, nil),
		funcType(nil, nil),
		funcType(nil, []byte{valI32}),
		funcType([]byte{valI32, valI32}, []byte{valI32}),
	))
	imp := func(field string, typeIdx uint32) []byte {
		out := append(wasmName(moduleName), wasmName(field)...)
		return append(append(out, 0x00), uleb(typeIdx)...)
	}
	imports := section(2, vec(
		imp("fd_write", 0),
		imp("proc_exit", 1),
		imp("args_sizes_get", 4),
	))
	funcs := section(3, vec(uleb(2), uleb(3)))
	memory := section(5, vec([]byte{0x00, 0x01}))
	export := func(field string, kind byte, idx uint32) []byte {
		return append(append(wasmName(field), kind), uleb(idx)...)
	}
	exports := section(7, vec(
		export("memory", 0x02, 0),
		export("_start", 0x00, start),
		export("args", 0x00, args),
	))

	startBody := [][]byte{
		i32Const(1), i32Const(HelloIovec), i32Const(1), i32Const(HelloNwritten),
		callFunc(fdWrite), {opDrop},
	}
	if exit >= 0 {
		startBody = append(startBody, i32Const(exit), callFunc(procExit))
	}
	code := section(10, vec(
		body(startBody...),
		body(i32Const(ArgcPtr), i32Const(ArgvBufPtr), callFunc(argsSizesGet)),
	))

	var seg bytes.Buffer
	seg.Write([]byte{HelloText, 0, 0, 0, 6, 0, 0, 0})
	seg.Write(make([]byte, HelloText-8))
	seg.WriteString("hello\n")
	offset := append(i32Const(0), opEnd)
	data := section(11, vec(append(append([]byte{0x00}, offset...), wasmName(seg.String())...)))

	return module(types, imports, funcs, memory, exports, code, data)
}

// Guest memory layout of Echo.
const (
	EchoIovec   = 200
	EchoNread   = 208
	EchoWritten = 212
	EchoBuf     = 256
	EchoBufLen  = 64
)

// Echo builds a guest whose _start reads up to EchoBufLen bytes from fd 0
// with a single fd_read and writes what it got to fd 1.
func Echo() []byte {
	const (
		fdRead = iota
		fdWrite
		start
	)
	types := section(1, vec(
		funcType([]byte{valI32, valI32, valI32, valI32}, []byte{valI32}),
		funcType(nil, nil),
	))
	imp := func(field string) []byte {
		out := append(wasmName(moduleName), wasmName(field)...)
		return append(out, 0x00, 0x00)
	}
	imports := section(2, vec(imp("fd_read"), imp("fd_write")))
	funcs := section(3, vec(uleb(1)))
	memory := section(5, vec([]byte{0x00, 0x01}))
	exports := section(7, vec(
		append(append(wasmName("memory"), 0x02), uleb(0)...),
		append(append(wasmName("_start"), 0x00), uleb(start)...),
	))

	memarg := []byte{0x02, 0x00}
	code := section(10, vec(body(
		i32Const(0), i32Const(EchoIovec), i32Const(1), i32Const(EchoNread),
		callFunc(fdRead), []byte{opDrop},
		// the iovec length becomes the number of bytes read
		i32Const(EchoIovec+4), i32Const(EchoNread),
		append([]byte{opI32Load}, memarg...),
		append([]byte{opI32Store}, memarg...),
		i32Const(1), i32Const(EchoIovec), i32Const(1), i32Const(EchoWritten),
		callFunc(fdWrite), []byte{opDrop},
	)))

	seg := []byte{EchoBuf & 0xff, EchoBuf >> 8, 0, 0, EchoBufLen, 0, 0, 0}
	offset := append(i32Const(EchoIovec), opEnd)
	data := section(11, vec(append(append([]byte{0x00}, offset...), wasmName(string(seg))...)))

	return module(types, imports, funcs, memory, exports, code, data)
}

func module(sections ...[]byte) []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	for _, s := range sections {
		out.Write(s)
	}
	return out.Bytes()
}
