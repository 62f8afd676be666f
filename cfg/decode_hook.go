// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfg

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"
)

func hookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)
		switch t {
		case reflect.TypeOf(CaseSensitivity("")):
			v := CaseSensitivity(strings.ToLower(s))
			if !slices.Contains([]CaseSensitivity{Sensitive, InsensitivePreserving, InsensitiveFolding}, v) {
				return nil, fmt.Errorf("invalid case-sensitivity: %s", s)
			}
			return v, nil
		case reflect.TypeOf(LogSeverity("")):
			level := LogSeverity(strings.ToUpper(s))
			if !slices.Contains([]LogSeverity{SeverityTrace, SeverityDebug, SeverityInfo, SeverityWarning, SeverityError, SeverityOff}, level) {
				return nil, fmt.Errorf("invalid log severity: %s", s)
			}
			return level, nil
		default:
			return data, nil
		}
	}
}

// DecodeHook is the mapstructure decode hook chain used when viper unmarshals
// a parsed config file/flags/env blend into a Config, grounded on the
// teacher's cfg.DecodeHook composition.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		hookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
