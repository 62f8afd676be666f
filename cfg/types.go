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
	"slices"
	"strings"
)

// CaseSensitivity selects the name comparison and storage policy for
// directory lookups (spec §6).
type CaseSensitivity string

const (
	Sensitive             CaseSensitivity = "sensitive"
	InsensitivePreserving CaseSensitivity = "insensitive-preserving"
	InsensitiveFolding    CaseSensitivity = "insensitive-folding"
)

func (c *CaseSensitivity) UnmarshalText(text []byte) error {
	v := CaseSensitivity(strings.ToLower(string(text)))
	allowed := []CaseSensitivity{Sensitive, InsensitivePreserving, InsensitiveFolding}
	if !slices.Contains(allowed, v) {
		return fmt.Errorf("invalid case-sensitivity value: %s (must be one of %v)", text, allowed)
	}
	*c = v
	return nil
}

func (c CaseSensitivity) MarshalText() ([]byte, error) {
	return []byte(c), nil
}

// LogSeverity is the minimum severity the logger package will emit.
type LogSeverity string

const (
	SeverityTrace   LogSeverity = "TRACE"
	SeverityDebug   LogSeverity = "DEBUG"
	SeverityInfo    LogSeverity = "INFO"
	SeverityWarning LogSeverity = "WARNING"
	SeverityError   LogSeverity = "ERROR"
	SeverityOff     LogSeverity = "OFF"
)

func (s *LogSeverity) UnmarshalText(text []byte) error {
	v := LogSeverity(strings.ToUpper(string(text)))
	allowed := []LogSeverity{SeverityTrace, SeverityDebug, SeverityInfo, SeverityWarning, SeverityError, SeverityOff}
	if !slices.Contains(allowed, v) {
		return fmt.Errorf("invalid log severity: %s", text)
	}
	*s = v
	return nil
}
