/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package interact

import (
	"errors"
	"sync"
)

// ErrLockHeld is returned by Acquire when another gesture owns the lock.
var ErrLockHeld = errors.New("interact: exclusive input already claimed")

// InputLock is the host-side exclusive-input claim taken for the duration of
// a resize: the host stops scrolling and text selection and routes pointer
// events to the controller first. Release must tolerate being called once
// per successful Acquire.
type InputLock interface {
	Acquire() error
	Release()
}

// ExclusiveLock is an InputLock that admits one holder at a time. Hosts
// without page state of their own (HTTP, tests) use it directly; others wrap
// it with their suppression hooks via OnAcquire/OnRelease.
type ExclusiveLock struct {
	mu        sync.Mutex
	held      bool
	OnAcquire func()
	OnRelease func()
}

func (l *ExclusiveLock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return ErrLockHeld
	}
	l.held = true
	if l.OnAcquire != nil {
		l.OnAcquire()
	}
	return nil
}

func (l *ExclusiveLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return
	}
	l.held = false
	if l.OnRelease != nil {
		l.OnRelease()
	}
}

// Held reports whether the lock is currently claimed.
func (l *ExclusiveLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}
