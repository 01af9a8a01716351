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

package image

import (
	"fmt"
	"strings"

	"github.com/logilab/onyxia-composer/pkg/errors"
)

// BuildType selects how the service image is obtained.
type BuildType string

// Supported build types.
const (
	FromRepo           BuildType = "fromRepo"
	FromDockerImage    BuildType = "fromDockerImage"
	FromLocalDirectory BuildType = "fromLocalDirectory"
)

// BuildTypes lists the supported build types.
var BuildTypes = []BuildType{FromRepo, FromDockerImage, FromLocalDirectory}

// ParseBuildType validates s.
func ParseBuildType(s string) (BuildType, error) {
	for _, bt := range BuildTypes {
		if string(bt) == s {
			return bt, nil
		}
	}
	return "", errors.NewWithContext(errors.ErrCodeInvalidRequest,
		fmt.Sprintf("unsupported app build type %q", s),
		map[string]any{"supported": BuildTypes})
}

// AppType selects the runtime serving the app.
type AppType string

// Supported app types.
const (
	Voila     AppType = "voila"
	Streamlit AppType = "streamlit"
	Dash      AppType = "dash"
	Shiny     AppType = "shiny"
)

// DefaultAppType is used when a request names none.
const DefaultAppType = Voila

// AppPort is the port every app type listens on.
const AppPort = 8888

type runtime struct {
	toolchain  []string
	entrypoint string
	command    func(entry string) []string
}

var runtimes = map[AppType]runtime{
	Voila: {
		entrypoint: "index.ipynb",
		command: func(entry string) []string {
			return []string{"voila", entry,
				fmt.Sprintf("--port=%d", AppPort), "--no-browser", "--Voila.ip=0.0.0.0"}
		},
	},
	Streamlit: {
		toolchain:  []string{"RUN pip install --no-cache-dir streamlit"},
		entrypoint: "app.py",
		command: func(entry string) []string {
			return []string{"streamlit", "run", entry,
				fmt.Sprintf("--server.port=%d", AppPort), "--server.address=0.0.0.0"}
		},
	},
	Dash: {
		toolchain:  []string{"RUN pip install --no-cache-dir dash"},
		entrypoint: "app.py",
		command: func(entry string) []string {
			return []string{"python", entry}
		},
	},
	Shiny: {
		toolchain: []string{
			"RUN apt-get update && apt-get install -y --no-install-recommends r-base && rm -rf /var/lib/apt/lists/*",
			`RUN R -e "install.packages('shiny', repos='https://cloud.r-project.org')"`,
		},
		entrypoint: ".",
		command: func(entry string) []string {
			return []string{"R", "-e",
				fmt.Sprintf("shiny::runApp('%s', port=%d, host='0.0.0.0')", entry, AppPort)}
		},
	},
}

// ParseAppType validates s. An empty string selects DefaultAppType.
func ParseAppType(s string) (AppType, error) {
	if s == "" {
		return DefaultAppType, nil
	}
	at := AppType(strings.ToLower(s))
	if _, ok := runtimes[at]; !ok {
		return "", errors.NewWithContext(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("unsupported app type %q", s),
			map[string]any{"supported": []AppType{Voila, Streamlit, Dash, Shiny}})
	}
	return at, nil
}

// DefaultEntrypoint returns the file the app type starts when none is given.
func (a AppType) DefaultEntrypoint() string {
	return runtimes[a].entrypoint
}

// Command returns the argv that starts the app.
func (a AppType) Command(entry string) []string {
	rt, ok := runtimes[a]
	if !ok {
		return nil
	}
	if entry == "" {
		entry = rt.entrypoint
	}
	return rt.command(entry)
}

// Toolchain returns the Dockerfile instructions installing the runtime.
func (a AppType) Toolchain() []string {
	return append([]string(nil), runtimes[a].toolchain...)
}
