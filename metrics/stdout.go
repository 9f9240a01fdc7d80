// Copyright (c) 2016-2019 Uber Technologies, Inc.
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
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/uber-go/tally"
)

func newStdoutScope(peerID string) (tally.Scope, io.Closer, error) {
	s, c := tally.NewRootScope(tally.ScopeOptions{
		Tags:     map[string]string{"peer_id": peerID},
		Reporter: stdoutReporter{},
	}, time.Second)
	return s, c, nil
}

type stdoutReporter struct{}

func (r stdoutReporter) ReportCounter(name string, tags map[string]string, value int64) {
	fmt.Printf("counter %s%v %d\n", name, tags, value)
}

func (r stdoutReporter) ReportGauge(name string, tags map[string]string, value float64) {
	fmt.Printf("gauge %s%v %f\n", name, tags, value)
}

func (r stdoutReporter) ReportTimer(name string, tags map[string]string, interval time.Duration) {
	fmt.Printf("timer %s%v %s\n", name, tags, interval)
}

func (r stdoutReporter) ReportHistogramValueSamples(
	string, map[string]string, tally.Buckets, float64, float64, int64) {
}
func (r stdoutReporter) ReportHistogramDurationSamples(
	string, map[string]string, tally.Buckets, time.Duration, time.Duration, int64) {
}
func (r stdoutReporter) Capabilities() tally.Capabilities { return r }
func (r stdoutReporter) Reporting() bool                  { return true }
func (r stdoutReporter) Tagging() bool                    { return true }
func (r stdoutReporter) Flush()                           {}
