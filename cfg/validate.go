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

import "fmt"

const (
	MaxOpenHandlesInvalidValueError = "limits.max-open-handles can't be negative"
	MaxBytesInMemoryInvalidError    = "memory.max-bytes-in-memory can't be negative"
	DefaultUidGidRangeError         = "security.default-uid/default-gid must fit in 32 bits"
)

// ValidateConfig returns a non-nil error if the config is invalid, mirroring
// the teacher's cfg.ValidateConfig boundary check (one error path per
// subsection, wrapped with context).
func ValidateConfig(config *Config) error {
	if err := isValidCaseSensitivity(config.CaseSensitivity); err != nil {
		return fmt.Errorf("error parsing case-sensitivity config: %w", err)
	}

	if err := isValidLimitsConfig(&config.Limits); err != nil {
		return fmt.Errorf("error parsing limits config: %w", err)
	}

	if err := isValidMemoryConfig(&config.Memory); err != nil {
		return fmt.Errorf("error parsing memory config: %w", err)
	}

	return nil
}

func isValidCaseSensitivity(c CaseSensitivity) error {
	switch c {
	case Sensitive, InsensitivePreserving, InsensitiveFolding:
		return nil
	default:
		return fmt.Errorf("unknown case-sensitivity value: %q", c)
	}
}

func isValidLimitsConfig(l *LimitsConfig) error {
	if l.MaxOpenHandles < 0 {
		return fmt.Errorf(MaxOpenHandlesInvalidValueError)
	}
	if l.MaxBranches < 0 {
		return fmt.Errorf("limits.max-branches can't be negative")
	}
	if l.MaxSnapshots < 0 {
		return fmt.Errorf("limits.max-snapshots can't be negative")
	}
	return nil
}

func isValidMemoryConfig(m *MemoryConfig) error {
	if m.MaxBytesInMemory < 0 {
		return fmt.Errorf(MaxBytesInMemoryInvalidError)
	}
	return nil
}
