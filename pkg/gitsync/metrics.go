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

package gitsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gitCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "composer_git_command_duration_seconds",
			Help:    "Duration of git commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	gitCommandFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "composer_git_command_failures_total",
			Help: "Total number of failed git commands",
		},
		[]string{"command"},
	)

	publishRollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "composer_git_publish_rollbacks_total",
			Help: "Total number of local commits reset after a failed push",
		},
	)
)
