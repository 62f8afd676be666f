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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateConfigDefaultIsValid(t *testing.T) {
	c := Default()
	assert.NoError(t, ValidateConfig(&c))
}

func TestValidateConfigRejectsBadCaseSensitivity(t *testing.T) {
	c := Default()
	c.CaseSensitivity = "not-a-real-policy"
	assert.Error(t, ValidateConfig(&c))
}

func TestValidateConfigRejectsNegativeLimits(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative max-open-handles", func(c *Config) { c.Limits.MaxOpenHandles = -1 }},
		{"negative max-branches", func(c *Config) { c.Limits.MaxBranches = -1 }},
		{"negative max-snapshots", func(c *Config) { c.Limits.MaxSnapshots = -1 }},
		{"negative max-bytes-in-memory", func(c *Config) { c.Memory.MaxBytesInMemory = -1 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(&c)
			assert.Error(t, ValidateConfig(&c))
		})
	}
}

func TestEffectiveMaxOpenHandlesDefaultsWhenUnset(t *testing.T) {
	c := Config{}
	assert.Equal(t, 1<<16, EffectiveMaxOpenHandles(&c))

	c.Limits.MaxOpenHandles = 4
	assert.Equal(t, 4, EffectiveMaxOpenHandles(&c))
}

func TestIsMemoryBounded(t *testing.T) {
	c := Config{}
	assert.False(t, IsMemoryBounded(&c))

	c.Memory.MaxBytesInMemory = 1024
	assert.True(t, IsMemoryBounded(&c))
}
