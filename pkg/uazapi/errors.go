/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package uazapi

import "fmt"

// UpstreamError is a network failure or non-2xx answer from a monitored
// server. Callers own retry policy; the client never retries.
type UpstreamError struct {
	Server     string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s returned status %d", e.Server, e.StatusCode)
	}

	return fmt.Sprintf("upstream %s unreachable: %v", e.Server, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
