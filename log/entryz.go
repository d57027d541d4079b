package log

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/Sirupsen/logrus.v0"
)

// EntryZ is a pooled log entry builder. A disabled module hands out a nil
// *EntryZ and every method is nil-safe, so a fully chained call on a
// disabled module costs a branch and nothing else.
type EntryZ struct {
	mod   Module
	lvl   Level
	msg   string
	zfidx int
	zfbuf [16]ZField
}

var zpool = sync.Pool{
	New: func() any { return new(EntryZ) },
}

func NewEntryZ() *EntryZ {
	e := zpool.Get().(*EntryZ)
	e.zfidx = 0
	return e
}

func (e *EntryZ) append(f ZField) *EntryZ {
	if e == nil {
		return nil
	}
	if e.zfidx < len(e.zfbuf) {
		e.zfbuf[e.zfidx] = f
		e.zfidx++
	}
	return e
}

func (e *EntryZ) Bool(key string, val bool) *EntryZ {
	return e.append(ZField{Type: FieldTypeBool, Key: key, Boolean: val})
}

func (e *EntryZ) String(key, val string) *EntryZ {
	return e.append(ZField{Type: FieldTypeString, Key: key, String: val})
}

func (e *EntryZ) Int(key string, val int) *EntryZ {
	return e.append(ZField{Type: FieldTypeInt, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Int64(key string, val int64) *EntryZ {
	return e.append(ZField{Type: FieldTypeInt, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Uint(key string, val uint64) *EntryZ {
	return e.append(ZField{Type: FieldTypeUint, Key: key, Integer: val})
}

func (e *EntryZ) Uint8(key string, val uint8) *EntryZ {
	return e.append(ZField{Type: FieldTypeUint, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Uint16(key string, val uint16) *EntryZ {
	return e.append(ZField{Type: FieldTypeUint, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Uint32(key string, val uint32) *EntryZ {
	return e.append(ZField{Type: FieldTypeUint, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Uint64(key string, val uint64) *EntryZ {
	return e.append(ZField{Type: FieldTypeUint, Key: key, Integer: val})
}

func (e *EntryZ) Hex8(key string, val uint8) *EntryZ {
	return e.append(ZField{Type: FieldTypeHex8, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Hex16(key string, val uint16) *EntryZ {
	return e.append(ZField{Type: FieldTypeHex16, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Hex32(key string, val uint32) *EntryZ {
	return e.append(ZField{Type: FieldTypeHex32, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Hex64(key string, val uint64) *EntryZ {
	return e.append(ZField{Type: FieldTypeHex64, Key: key, Integer: val})
}

func (e *EntryZ) Error(key string, err error) *EntryZ {
	return e.append(ZField{Type: FieldTypeError, Key: key, Error: err})
}

// Err is a shorthand for Error("err", err).
func (e *EntryZ) Err(err error) *EntryZ {
	return e.Error("err", err)
}

func (e *EntryZ) Duration(key string, val time.Duration) *EntryZ {
	return e.append(ZField{Type: FieldTypeDuration, Key: key, Duration: val})
}

func (e *EntryZ) Stringer(key string, val fmt.Stringer) *EntryZ {
	return e.append(ZField{Type: FieldTypeStringer, Key: key, Interface: val})
}

// End emits the entry and recycles it. The EntryZ must not be used after
// calling End.
func (e *EntryZ) End() {
	if e == nil {
		return
	}
	for _, c := range contexts {
		c.AddLogContext(e)
	}

	fields := make(logrus.Fields, e.zfidx+1)
	fields["_mod"] = modNames[e.mod]
	for i := range e.zfbuf[:e.zfidx] {
		fields[e.zfbuf[i].Key] = e.zfbuf[i].Value()
	}

	entry := logrus.StandardLogger().WithFields(fields)
	switch e.lvl {
	case DebugLevel:
		entry.Debug(e.msg)
	case InfoLevel:
		entry.Info(e.msg)
	case WarnLevel:
		entry.Warn(e.msg)
	case ErrorLevel:
		entry.Error(e.msg)
	case FatalLevel:
		entry.Fatal(e.msg)
	case PanicLevel:
		entry.Panic(e.msg)
	}
	zpool.Put(e)
}
