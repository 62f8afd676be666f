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

// RegisterProcess records a process's identity (pid/ppid/uid/gid/umask)
// and returns a ProcessToken callers pass to every later operation so
// permission checks and branch resolution know who is asking. The token is
// opaque to callers; internally it is the pid, so a second call for a pid
// already registered is a no-op that returns the existing token and leaves
// its identity and branch binding untouched: only a pid seen for the first
// time gets a fresh binding.
func (fs *Core) RegisterProcess(pid, ppid int32, uid, gid uint32, umask uint32) ProcessToken {
	token := ProcessToken(pid)

	fs.processMu.Lock()
	defer fs.processMu.Unlock()
	if _, ok := fs.processes[token]; ok {
		return token
	}
	fs.processes[token] = &processBinding{
		Token: token,
		Pid:   pid,
		Ppid:  ppid,
		Uid:   uid,
		Gid:   gid,
		Umask: umask,
	}
	return token
}

// UnregisterProcess forgets a process. Any branch binding it held is
// discarded; handles it opened are not implicitly closed (spec.md does not
// tie handle lifetime to process registration).
func (fs *Core) UnregisterProcess(token ProcessToken) {
	fs.processMu.Lock()
	defer fs.processMu.Unlock()
	delete(fs.processes, token)
}

// BindProcessToBranch makes token's subsequent path resolutions target
// branch. Returns NotFound if token was never registered, or
// InvalidArgument if branch does not exist.
func (fs *Core) BindProcessToBranch(token ProcessToken, branch BranchId) error {
	const op = "bind_process_to_branch"

	fs.branchMu.RLock()
	_, ok := fs.branches[branch]
	fs.branchMu.RUnlock()
	if !ok {
		return newErr(op, KindInvalidArgument, "branch not found")
	}

	fs.processMu.Lock()
	defer fs.processMu.Unlock()
	p, ok := fs.processes[token]
	if !ok {
		return newErr(op, KindNotFound, "process not registered")
	}
	p.BoundTo = branch
	p.HasBinding = true
	return nil
}

// UnbindProcess clears token's branch binding. Later operations from this
// token resolve against the default branch until it is bound again.
func (fs *Core) UnbindProcess(token ProcessToken) error {
	fs.processMu.Lock()
	defer fs.processMu.Unlock()
	p, ok := fs.processes[token]
	if !ok {
		return newErr("unbind_process", KindNotFound, "process not registered")
	}
	p.HasBinding = false
	p.BoundTo = BranchId{}
	return nil
}

// processFor resolves a token to its binding, or NotFound.
func (fs *Core) processFor(op string, token ProcessToken) (*processBinding, error) {
	fs.processMu.RLock()
	defer fs.processMu.RUnlock()
	p, ok := fs.processes[token]
	if !ok {
		return nil, newErr(op, KindNotFound, "process not registered")
	}
	return p, nil
}

// boundBranch resolves token to the branch it must operate against. An
// unbound process resolves against the core's default branch (spec.md §3:
// "Unbound processes resolve against the default branch").
func (fs *Core) boundBranch(op string, token ProcessToken) (BranchId, error) {
	p, err := fs.processFor(op, token)
	if err != nil {
		return BranchId{}, err
	}
	if !p.HasBinding {
		return fs.DefaultBranch(), nil
	}
	return p.BoundTo, nil
}
