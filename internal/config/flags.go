package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// BindFlags registers a flag for every field of opts that carries a help
// tag. The flag is named after the field ("LogLevel" becomes "log-level"),
// uses the short tag as its shorthand and the default tag as its initial
// value. opts must be a pointer to a struct.
func BindFlags(opts any, fs *pflag.FlagSet) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return errors.New("config: BindFlags needs a pointer to a struct")
	}
	v = v.Elem()
	t := v.Type()

	for i := range t.NumField() {
		field := t.Field(i)
		help, ok := field.Tag.Lookup("help")
		if !ok {
			continue
		}
		name := fieldNameToFlag(field.Name)
		short := field.Tag.Get("short")
		def := field.Tag.Get("default")

		switch p := v.Field(i).Addr().Interface().(type) {
		case *string:
			fs.StringVarP(p, name, short, def, help)
		case *bool:
			b := false
			if def != "" {
				parsed, err := strconv.ParseBool(def)
				if err != nil {
					return fmt.Errorf("config: bad default %q for %s: %w", def, field.Name, err)
				}
				b = parsed
			}
			fs.BoolVarP(p, name, short, b, help)
		case *int:
			n := 0
			if def != "" {
				parsed, err := strconv.Atoi(def)
				if err != nil {
					return fmt.Errorf("config: bad default %q for %s: %w", def, field.Name, err)
				}
				n = parsed
			}
			fs.IntVarP(p, name, short, n, help)
		case *time.Duration:
			var d time.Duration
			if def != "" {
				parsed, err := time.ParseDuration(def)
				if err != nil {
					return fmt.Errorf("config: bad default %q for %s: %w", def, field.Name, err)
				}
				d = parsed
			}
			fs.DurationVarP(p, name, short, d, help)
		case *[]string:
			var list []string
			if def != "" {
				list = strings.Split(def, ",")
			}
			fs.StringSliceVarP(p, name, short, list, help)
		default:
			return fmt.Errorf("config: unsupported flag type %s for %s", field.Type, field.Name)
		}
	}
	return nil
}
