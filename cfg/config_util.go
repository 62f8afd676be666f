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

// IsMemoryBounded reports whether the content store enforces a byte cap,
// used by callers deciding whether to pre-flight a write's size.
func IsMemoryBounded(c *Config) bool {
	return c.Memory.MaxBytesInMemory > 0
}

// EffectiveMaxOpenHandles returns the configured handle cap, defaulting to
// a generous value when unset, mirroring the teacher's
// fs.ChooseTempDirLimitNumFiles heuristic of picking a reasonable bound
// rather than leaving a resource unconstrained.
func EffectiveMaxOpenHandles(c *Config) int {
	if c.Limits.MaxOpenHandles > 0 {
		return c.Limits.MaxOpenHandles
	}
	const reasonableDefault = 1 << 16
	return reasonableDefault
}
