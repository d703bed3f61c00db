// response.go
//
// Multi-department "no dues" clearance workflow service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of nodues.
// nodues is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// nodues is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with nodues.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package helpers

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
)

// AssertStatus verifies the HTTP status code
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status %d, got %d", expected, resp.StatusCode)
	}
}

// ParseJSON decodes the response body into the target
func ParseJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	defer resp.Body.Close()

	if err := json.Unmarshal(body, target); err != nil {
		t.Fatalf("Failed to decode JSON: %v. Body: %s", err, string(body))
	}
}

// ErrorBody is the error envelope returned by the API.
type ErrorBody struct {
	Status   int               `json:"status"`
	Message  string            `json:"message"`
	Ok       bool              `json:"ok"`
	Type     string            `json:"type"`
	Conflict bool              `json:"conflict"`
	Fields   map[string]string `json:"fields"`
}

// AssertErrorType verifies the status and error type of a failed request.
func AssertErrorType(t *testing.T, resp *http.Response, status int, errorType string) ErrorBody {
	t.Helper()
	AssertStatus(t, resp, status)
	var body ErrorBody
	ParseJSON(t, resp, &body)
	if body.Type != errorType {
		t.Errorf("Expected error type %q, got %q (%s)", errorType, body.Type, body.Message)
	}
	if body.Ok {
		t.Errorf("Expected ok=false in error body")
	}
	return body
}
