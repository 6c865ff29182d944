package hook

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap/zapcore"
)

var (
	levelType = reflect.TypeOf(zapcore.InfoLevel)
)

// Level parses zap level names case-insensitively. "warning" is accepted
// for "warn" and an empty string means info.
func Level() mapstructure.DecodeHookFuncType {
	return func(in reflect.Type, out reflect.Type, val interface{}) (interface{}, error) {
		if in.Kind() == reflect.String && out == levelType {
			name := strings.ToLower(strings.TrimSpace(val.(string)))
			if name == "warning" {
				name = "warn"
			}
			l := zapcore.InfoLevel
			if name == "" {
				return l, nil
			}
			if err := l.UnmarshalText([]byte(name)); err != nil {
				return nil, err
			}
			return l, nil
		}
		return val, nil
	}
}
