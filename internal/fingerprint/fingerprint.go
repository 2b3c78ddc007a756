// Package fingerprint computes content digests for chart data payloads.
//
// A fingerprint is a pure function of the payload's structure and values:
// map key order, how the payload was built, and pointer identity never
// affect it. Two structurally equal payloads always digest identically.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ChartData is the payload shape accepted by the cache: string-keyed maps
// whose values are numbers, strings, bools, nil, nested maps, or slices.
type ChartData = map[string]any

// Fingerprint returns the SHA-256 hex digest of the canonical form of data.
// It errors on value kinds outside the ChartData contract (channels, funcs,
// structs, non-string map keys).
func Fingerprint(data any) (string, error) {
	var b strings.Builder
	if err := writeCanonical(&b, reflect.ValueOf(data)); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

// writeCanonical renders v into a stable textual form: sorted map keys,
// explicit type tags, shortest round-trip float formatting.
func writeCanonical(b *strings.Builder, v reflect.Value) error {
	if !v.IsValid() {
		b.WriteString("nil")
		return nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			b.WriteString("nil")
			return nil
		}
		return writeCanonical(b, v.Elem())

	case reflect.String:
		b.WriteString("s:")
		b.WriteString(strconv.Quote(v.String()))

	case reflect.Bool:
		b.WriteString("b:")
		b.WriteString(strconv.FormatBool(v.Bool()))

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString("i:")
		b.WriteString(strconv.FormatInt(v.Int(), 10))

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		b.WriteString("i:")
		b.WriteString(strconv.FormatUint(v.Uint(), 10))

	case reflect.Float32, reflect.Float64:
		b.WriteString("f:")
		b.WriteString(strconv.FormatFloat(v.Float(), 'g', -1, 64))

	case reflect.Slice, reflect.Array:
		b.WriteString("l[")
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, v.Index(i)); err != nil {
				return err
			}
		}
		b.WriteByte(']')

	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("unsupported map key type %s", v.Type().Key())
		}
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		b.WriteString("m{")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte('=')
			if err := writeCanonical(b, v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key()))); err != nil {
				return err
			}
		}
		b.WriteByte('}')

	default:
		return fmt.Errorf("unsupported value kind %s", v.Kind())
	}

	return nil
}
