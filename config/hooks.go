package config

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/mitchellh/mapstructure"
)

// ByteSize is a size in bytes, configured in human readable form such as
// "16MB". Units are binary: 1MB is 1024*1024 bytes.
type ByteSize uint64

func (s ByteSize) String() string {
	return units.BytesSize(float64(s))
}

// StringToByteSizeHookFunc decodes human readable sizes into a ByteSize.
func StringToByteSizeHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}
		size, err := units.RAMInBytes(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid size %q: %w", data, err)
		}
		if size < 0 {
			return nil, fmt.Errorf("invalid size %q: must not be negative", data)
		}
		return ByteSize(size), nil
	}
}

// SecondsToDurationHookFunc decodes plain numbers into durations in seconds,
// so that "300" and "5m" configure the same timeout.
func SecondsToDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch f.Kind() {
		case reflect.String:
			seconds, err := strconv.ParseUint(data.(string), 10, 64)
			if err != nil {
				// not a plain number, left to the duration parser
				return data, nil
			}
			return time.Duration(seconds) * time.Second, nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(reflect.ValueOf(data).Uint()) * time.Second, nil
		default:
			return data, nil
		}
	}
}
