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

package store

import "errors"

var (
	// ErrDuplicateServer is returned when registering a server name that
	// already exists.
	ErrDuplicateServer = errors.New("server already registered")

	// ErrStoreUnavailable is returned on writes when no KV backend is
	// configured. Reads degrade to empty results instead.
	ErrStoreUnavailable = errors.New("state store not configured")
)
