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

// Command agentfsctl is an in-process harness for the core: it has no FUSE
// or socket front-end of its own, it constructs a core.Core directly and
// drives it, the way an adapter would, to exercise branches, snapshots and
// VFS operations from the command line.
package main

func main() {
	Execute()
}
