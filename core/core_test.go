// Copyright 2025 Google LLC
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

package core

import (
	"github.com/agentfs/agentfs-core/cfg"
	"github.com/agentfs/agentfs-core/clock"
	"github.com/agentfs/agentfs-core/metrics"
)

// newTestCore builds a Core with invariant checking enabled and the real
// wall clock, the configuration every test in this package starts
// from unless it needs to override a specific field.
func newTestCore() *Core {
	c := cfg.Default()
	return New(c, clock.RealClock{}, metrics.NoOp(), WithInvariantChecking())
}

func newTestCoreWithConfig(mutate func(*cfg.Config)) *Core {
	c := cfg.Default()
	if mutate != nil {
		mutate(&c)
	}
	return New(c, clock.RealClock{}, metrics.NoOp(), WithInvariantChecking())
}

func rw() OpenFlags       { return OpenFlags{Read: true, Write: true} }
func rwCreate() OpenFlags { return OpenFlags{Read: true, Write: true, Create: true} }
func ro() OpenFlags       { return OpenFlags{Read: true} }
