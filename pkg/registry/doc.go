// Copyright (c) 2025, Logilab.  All rights reserved.
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

// Package registry derives per-service release history from git tags.
//
// Chart releases are recorded as tags of the form "<service>-<version>".
// A Ledger groups those tags by service name in the order they were listed
// and answers the questions the lifecycle manager needs: which version comes
// next, whether a proposed version is taken, and which tag is current.
//
// Service names may contain dashes; the version is always the last
// dash-separated segment:
//
//	my-app-1.0.2  ->  name "my-app", version "1.0.2"
package registry
