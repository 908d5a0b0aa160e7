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

package models

import "encoding/json"

// canonicalInstanceFields are the keys the monitor inspects; anything else an
// upstream returns rides along in Extra untouched.
var canonicalInstanceFields = []string{
	"id", "name", "connectionStatus", "ownerJid", "profileName", "profilePicUrl",
}

func (i *Instance) UnmarshalJSON(data []byte) error {
	type plain Instance

	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for _, field := range canonicalInstanceFields {
		delete(raw, field)
	}

	if len(raw) > 0 {
		decoded.Extra = raw
	}

	*i = Instance(decoded)

	return nil
}

func (i Instance) MarshalJSON() ([]byte, error) {
	merged := make(map[string]any, len(i.Extra)+len(canonicalInstanceFields))

	for key, value := range i.Extra {
		merged[key] = value
	}

	merged["id"] = i.ID
	merged["name"] = i.Name
	merged["connectionStatus"] = i.ConnectionStatus
	merged["ownerJid"] = i.OwnerJID

	if i.ProfileName != "" {
		merged["profileName"] = i.ProfileName
	}

	if i.ProfilePicURL != "" {
		merged["profilePicUrl"] = i.ProfilePicURL
	}

	return json.Marshal(merged)
}
