// Copyright 2025 Kadir Pekel
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

package registry

import "fmt"

// AlreadyRegisteredError reports a load attempt whose sanitized card
// name is already taken by a connected agent.
type AlreadyRegisteredError struct {
	Name string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("agent %q is already registered", e.Name)
}

// NotRegisteredError reports an operation against an unknown agent name.
type NotRegisteredError struct {
	Name string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("agent %q is not registered", e.Name)
}

// TaskNotFoundError reports a task id the named agent does not own.
type TaskNotFoundError struct {
	Name   string
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %q is not known to agent %q", e.TaskID, e.Name)
}

// CardFetchError reports a failed agent card fetch during load.
type CardFetchError struct {
	Endpoint string
	Err      error
}

func (e *CardFetchError) Error() string {
	return fmt.Sprintf("failed to fetch agent card from %s: %v", e.Endpoint, e.Err)
}

func (e *CardFetchError) Unwrap() error {
	return e.Err
}
