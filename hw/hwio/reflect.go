package hwio

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Register banks are plain structs with hwio-tagged fields. InitRegs fills
// in names, reset values, masks and flags, and binds the callback methods
// declared by the rcb/wcb/pcb options. Callback methods live on the bank
// itself and are found by name: field CTRLA with option wcb binds the method
// WriteCTRLA. An explicit name can be given with wcb=MethodName.
//
// Options understood, per field type:
//
//	Reg8/Reg16   reset=0xNN rwmask=0xNN rcb wcb pcb readonly writeonly
//	Mem          size=0xNN vsize=0xNN wcb readonly
//	Device       size=0xNN rcb wcb pcb readonly writeonly
//
// plus offset= and bank=, consumed by Table.MapBank.

type regInfo struct {
	offset uint16
	regPtr any
}

type tagOpts struct {
	offset uint64
	bank   uint64
	reset  uint64
	rwmask uint64
	size   uint64
	vsize  uint64

	hasOffset bool
	hasReset  bool
	hasRwmask bool
	hasSize   bool
	hasVsize  bool

	rcb, wcb, pcb          string
	hasRcb, hasWcb, hasPcb bool

	readonly  bool
	writeonly bool
}

func parseTag(tag string) (tagOpts, error) {
	var o tagOpts
	for _, opt := range strings.Split(tag, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key, val, hasVal := strings.Cut(opt, "=")

		num := func(dst *uint64, has *bool) error {
			if !hasVal {
				return fmt.Errorf("option %q requires a value", key)
			}
			n, err := strconv.ParseUint(val, 0, 32)
			if err != nil {
				return fmt.Errorf("option %q: %v", key, err)
			}
			*dst = n
			*has = true
			return nil
		}

		var err error
		switch key {
		case "offset":
			err = num(&o.offset, &o.hasOffset)
		case "bank":
			var has bool
			err = num(&o.bank, &has)
		case "reset":
			err = num(&o.reset, &o.hasReset)
		case "rwmask":
			err = num(&o.rwmask, &o.hasRwmask)
		case "size":
			err = num(&o.size, &o.hasSize)
		case "vsize":
			err = num(&o.vsize, &o.hasVsize)
		case "rcb":
			o.hasRcb, o.rcb = true, val
		case "wcb":
			o.hasWcb, o.wcb = true, val
		case "pcb":
			o.hasPcb, o.pcb = true, val
		case "readonly":
			o.readonly = true
		case "writeonly":
			o.writeonly = true
		default:
			err = fmt.Errorf("unknown option %q", key)
		}
		if err != nil {
			return o, err
		}
	}
	return o, nil
}

func (o *tagOpts) rwflags() RWFlags {
	var f RWFlags
	if o.readonly {
		f |= ReadOnlyFlag
	}
	if o.writeonly {
		f |= WriteOnlyFlag
	}
	return f
}

// callback method name: explicit if given in the tag, otherwise
// prefix + uppercased field name (wcb on CTRLA binds WriteCTRLA).
func cbName(given, prefix, field string) string {
	if given != "" {
		return given
	}
	return prefix + strings.ToUpper(field)
}

func method[T any](bank reflect.Value, name string) (T, error) {
	var zero T
	m := bank.MethodByName(name)
	if !m.IsValid() {
		return zero, fmt.Errorf("callback method %s not found", name)
	}
	fn, ok := m.Interface().(T)
	if !ok {
		return zero, fmt.Errorf("callback method %s has signature %s, want %T",
			name, m.Type(), zero)
	}
	return fn, nil
}

func bankStruct(bank any) (reflect.Value, error) {
	v := reflect.ValueOf(bank)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("hwio: want pointer to struct, got %T", bank)
	}
	return v, nil
}

// InitRegs initializes all the hwio-tagged fields of the bank structure.
func InitRegs(bank any) error {
	v, err := bankStruct(bank)
	if err != nil {
		return err
	}

	sv := v.Elem()
	st := sv.Type()
	for i, n := 0, st.NumField(); i < n; i++ {
		field := st.Field(i)
		tag, ok := field.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		opts, err := parseTag(tag)
		if err != nil {
			return fmt.Errorf("hwio: field %s: %v", field.Name, err)
		}

		switch fptr := sv.Field(i).Addr().Interface().(type) {
		case *Reg8:
			err = initReg8(fptr, v, field.Name, &opts)
		case *Reg16:
			err = initReg16(fptr, v, field.Name, &opts)
		case *Mem:
			err = initMem(fptr, v, field.Name, &opts)
		case *Device:
			err = initDevice(fptr, v, field.Name, &opts)
		default:
			err = fmt.Errorf("unsupported field type %s", field.Type)
		}
		if err != nil {
			return fmt.Errorf("hwio: field %s: %v", field.Name, err)
		}
	}
	return nil
}

// MustInitRegs is like InitRegs but panics on error.
func MustInitRegs(bank any) {
	if err := InitRegs(bank); err != nil {
		panic(err)
	}
}

func initReg8(reg *Reg8, bank reflect.Value, name string, opts *tagOpts) error {
	reg.Name = name
	reg.Flags = opts.rwflags()
	if opts.hasReset {
		if opts.reset > 0xFF {
			return fmt.Errorf("reset value %#x too big for Reg8", opts.reset)
		}
		reg.Value = uint8(opts.reset)
	}
	if opts.hasRwmask {
		if opts.rwmask > 0xFF {
			return fmt.Errorf("rwmask %#x too big for Reg8", opts.rwmask)
		}
		reg.RoMask = ^uint8(opts.rwmask)
	}

	var err error
	if opts.hasRcb {
		reg.ReadCb, err = method[func(uint8) uint8](bank, cbName(opts.rcb, "Read", name))
		if err != nil {
			return err
		}
	}
	if opts.hasPcb {
		reg.PeekCb, err = method[func(uint8) uint8](bank, cbName(opts.pcb, "Peek", name))
		if err != nil {
			return err
		}
	}
	if opts.hasWcb {
		reg.WriteCb, err = method[func(uint8, uint8)](bank, cbName(opts.wcb, "Write", name))
		if err != nil {
			return err
		}
	}
	return nil
}

func initReg16(reg *Reg16, bank reflect.Value, name string, opts *tagOpts) error {
	reg.Name = name
	reg.Flags = opts.rwflags()
	if opts.hasReset {
		if opts.reset > 0xFFFF {
			return fmt.Errorf("reset value %#x too big for Reg16", opts.reset)
		}
		reg.Value = uint16(opts.reset)
	}
	if opts.hasRwmask {
		if opts.rwmask > 0xFFFF {
			return fmt.Errorf("rwmask %#x too big for Reg16", opts.rwmask)
		}
		reg.RoMask = ^uint16(opts.rwmask)
	}

	var err error
	if opts.hasRcb {
		reg.ReadCb, err = method[func(uint16) uint16](bank, cbName(opts.rcb, "Read", name))
		if err != nil {
			return err
		}
	}
	if opts.hasPcb {
		reg.PeekCb, err = method[func(uint16) uint16](bank, cbName(opts.pcb, "Peek", name))
		if err != nil {
			return err
		}
	}
	if opts.hasWcb {
		reg.WriteCb, err = method[func(uint16, uint16)](bank, cbName(opts.wcb, "Write", name))
		if err != nil {
			return err
		}
	}
	return nil
}

func initMem(mem *Mem, bank reflect.Value, name string, opts *tagOpts) error {
	mem.Name = name
	if opts.readonly {
		mem.Flags |= MemFlag8ReadOnly
	}
	if !opts.hasSize {
		if mem.Data == nil {
			return fmt.Errorf("mem without size option nor preset Data")
		}
	} else if mem.Data == nil {
		mem.Data = make([]byte, opts.size)
	}
	mem.VSize = len(mem.Data)
	if opts.hasVsize {
		mem.VSize = int(opts.vsize)
	}

	if opts.hasWcb {
		wcb, err := method[func(uint16, uint8)](bank, cbName(opts.wcb, "Write", name))
		if err != nil {
			return err
		}
		mem.WriteCb = wcb
	}
	return nil
}

func initDevice(dev *Device, bank reflect.Value, name string, opts *tagOpts) error {
	dev.Name = name
	dev.Flags = opts.rwflags()
	if !opts.hasSize {
		return fmt.Errorf("device requires a size option")
	}
	dev.Size = int(opts.size)

	var err error
	if opts.hasRcb {
		dev.ReadCb, err = method[func(uint16) uint8](bank, cbName(opts.rcb, "Read", name))
		if err != nil {
			return err
		}
	}
	if opts.hasPcb {
		dev.PeekCb, err = method[func(uint16) uint8](bank, cbName(opts.pcb, "Peek", name))
		if err != nil {
			return err
		}
	}
	if opts.hasWcb {
		dev.WriteCb, err = method[func(uint16, uint8)](bank, cbName(opts.wcb, "Write", name))
		if err != nil {
			return err
		}
	}
	return nil
}

// bankGetRegs returns the mappable fields of the bank belonging to bankNum,
// that is the tagged fields carrying an offset option.
func bankGetRegs(bank any, bankNum int) ([]regInfo, error) {
	v, err := bankStruct(bank)
	if err != nil {
		return nil, err
	}

	var regs []regInfo
	sv := v.Elem()
	st := sv.Type()
	for i, n := 0, st.NumField(); i < n; i++ {
		field := st.Field(i)
		tag, ok := field.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		opts, err := parseTag(tag)
		if err != nil {
			return nil, fmt.Errorf("hwio: field %s: %v", field.Name, err)
		}
		if !opts.hasOffset || int(opts.bank) != bankNum {
			continue
		}
		if opts.offset > 0xFFFF {
			return nil, fmt.Errorf("hwio: field %s: offset %#x too big", field.Name, opts.offset)
		}

		switch field.Type {
		case reflect.TypeOf(Reg8{}), reflect.TypeOf(Reg16{}),
			reflect.TypeOf(Mem{}), reflect.TypeOf(Device{}):
			regs = append(regs, regInfo{
				offset: uint16(opts.offset),
				regPtr: sv.Field(i).Addr().Interface(),
			})
		default:
			return nil, fmt.Errorf("hwio: field %s: unsupported field type %s", field.Name, field.Type)
		}
	}
	return regs, nil
}
