// Package bitfield packs and unpacks `bitfield:",N"`-tagged struct
// fields into a single integer, with an Unpack inverse so the x86 fault
// path can decode a raw PTE or IDT type_attr byte back into named fields
// for a register dump.
package bitfield

import (
	"fmt"
	"reflect"
)

// Config determines settings for packing and unpacking.
type Config struct {
	// NumBits fixes the maximum allowed bits for the integer representation.
	NumBits uint
}

// Pack packs annotated bit ranges of struct x into an integer. Only fields
// tagged `bitfield:",N"` are packed; others are skipped.
func Pack(x interface{}, c *Config) (packed uint64, err error) {
	if c == nil {
		c = &Config{NumBits: 64}
	}

	v := reflect.ValueOf(x)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return 0, fmt.Errorf("bitfield: Pack expected struct, got %v", v.Kind())
	}

	t := v.Type()
	var bitOffset uint

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("bitfield")
		if tag == "" {
			continue
		}

		var bits uint
		if _, err := fmt.Sscanf(tag, ",%d", &bits); err != nil {
			return 0, fmt.Errorf("bitfield: invalid tag %q on field %s", tag, field.Name)
		}
		if bits == 0 {
			continue
		}

		fieldValue := v.Field(i)
		var fieldBits uint64
		switch fieldValue.Kind() {
		case reflect.Bool:
			if fieldValue.Bool() {
				fieldBits = 1
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			fieldBits = fieldValue.Uint()
		default:
			return 0, fmt.Errorf("bitfield: unsupported field type %v for field %s", fieldValue.Kind(), field.Name)
		}

		maxValue := (uint64(1) << bits) - 1
		if fieldBits > maxValue {
			return 0, fmt.Errorf("bitfield: value %d exceeds %d bits for field %s", fieldBits, bits, field.Name)
		}

		packed |= fieldBits << bitOffset
		bitOffset += bits
	}

	if c.NumBits > 0 && bitOffset > c.NumBits {
		return 0, fmt.Errorf("bitfield: total bits %d exceeds NumBits %d", bitOffset, c.NumBits)
	}
	return packed, nil
}

// Unpack is Pack's inverse: it reads bit ranges out of packed according to
// the same `bitfield:",N"` tags and sets them on x, which must be a pointer
// to a struct.
func Unpack(packed uint64, x interface{}) error {
	v := reflect.ValueOf(x)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bitfield: Unpack expects a pointer to struct")
	}
	v = v.Elem()
	t := v.Type()
	var bitOffset uint

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("bitfield")
		if tag == "" {
			continue
		}
		var bits uint
		if _, err := fmt.Sscanf(tag, ",%d", &bits); err != nil {
			return fmt.Errorf("bitfield: invalid tag %q on field %s", tag, field.Name)
		}
		if bits == 0 {
			continue
		}

		mask := (uint64(1) << bits) - 1
		fieldBits := (packed >> bitOffset) & mask
		bitOffset += bits

		fv := v.Field(i)
		if !fv.CanSet() {
			// Blank padding field: its bits are consumed but there is
			// nowhere to store them.
			continue
		}
		switch fv.Kind() {
		case reflect.Bool:
			fv.SetBool(fieldBits != 0)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			fv.SetUint(fieldBits)
		default:
			return fmt.Errorf("bitfield: unsupported field type %v for field %s", fv.Kind(), field.Name)
		}
	}
	return nil
}
