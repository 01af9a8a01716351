// Copyright (c) 2025, Logilab.  All rights reserved.
// Portions Copyright (c) 2025, NVIDIA CORPORATION.
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

package defaults

import (
	"testing"
	"time"
)

func TestTimeoutConstants(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		minValue time.Duration
		maxValue time.Duration
	}{
		// Git timeouts
		{"GitCommandTimeout", GitCommandTimeout, 5 * time.Second, 60 * time.Second},
		{"GitNetworkTimeout", GitNetworkTimeout, 15 * time.Second, 5 * time.Minute},

		// Handler timeouts
		{"ServiceHandlerTimeout", ServiceHandlerTimeout, 1 * time.Minute, 10 * time.Minute},
		{"QueryHandlerTimeout", QueryHandlerTimeout, 5 * time.Second, 60 * time.Second},

		// OCI timeouts
		{"OCIPushTimeout", OCIPushTimeout, 30 * time.Second, 10 * time.Minute},

		// Server timeouts
		{"ServerReadTimeout", ServerReadTimeout, 5 * time.Second, 30 * time.Second},
		{"ServerWriteTimeout", ServerWriteTimeout, 1 * time.Minute, 15 * time.Minute},
		{"ServerIdleTimeout", ServerIdleTimeout, 30 * time.Second, 300 * time.Second},
		{"ServerShutdownTimeout", ServerShutdownTimeout, 10 * time.Second, 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.timeout < tt.minValue {
				t.Errorf("%s (%v) is below minimum expected value (%v)", tt.name, tt.timeout, tt.minValue)
			}
			if tt.timeout > tt.maxValue {
				t.Errorf("%s (%v) is above maximum expected value (%v)", tt.name, tt.timeout, tt.maxValue)
			}
		})
	}
}

func TestServiceHandlerTimeoutCoversGitRoundTrips(t *testing.T) {
	// delete-then-recreate: pull+push on the publish branch, pull+push on main,
	// then the create push
	if ServiceHandlerTimeout < 4*GitNetworkTimeout {
		t.Errorf("ServiceHandlerTimeout (%v) should cover four network git commands (%v each)",
			ServiceHandlerTimeout, GitNetworkTimeout)
	}
}

func TestServerWriteTimeoutExceedsHandler(t *testing.T) {
	if ServerWriteTimeout <= ServiceHandlerTimeout {
		t.Errorf("ServerWriteTimeout (%v) should exceed ServiceHandlerTimeout (%v)",
			ServerWriteTimeout, ServiceHandlerTimeout)
	}
}
