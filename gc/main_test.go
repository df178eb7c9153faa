// Copyright 2021 TiKV Authors
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

package gc_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain checks that no goroutine started by Scheduler.Start (or anything
// else in this package's tests) survives its test, catching a Stop that
// forgot to wait for the tick dispatch goroutine to exit.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
