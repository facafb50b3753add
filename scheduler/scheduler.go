// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scheduler runs periodic background refresh jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/xregistry/package-registries/log"
)

// Schedule runs job every interval until ctx is cancelled. When
// initialIfMissing is true the first run happens synchronously before
// Schedule returns, so callers can depend on the job's output existing. A
// failing run is logged and the previous run's output stays in place; the
// schedule keeps ticking.
func Schedule(ctx context.Context, name string, interval time.Duration, initialIfMissing bool, job func(context.Context) error) {
	if initialIfMissing {
		log.Infof("running initial %s job", name)
		if err := job(ctx); err != nil {
			log.Errorf("initial %s job failed: %v", name, err)
		}
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Infof("%s schedule stopped: %v", name, ctx.Err())
				return
			case <-ticker.C:
				log.Infof("running scheduled %s job", name)
				if err := job(ctx); err != nil {
					log.Errorf("scheduled %s job failed: %v", name, err)
				}
			}
		}
	}()
}
