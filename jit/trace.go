/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package jit

import "encoding/json"
import "fmt"
import "io"
import "os"
import "sync"
import "time"

// Tracefile collects compile-phase timings as a JSON event list.
type Tracefile struct {
	isFirst bool
	file    io.WriteCloser
	m       sync.Mutex
}

var Trace *Tracefile // default trace: set to not nil if you want to trace

func SetTrace(on bool) { // sets Trace to nil or a value
	if Trace != nil {
		Trace.Close()
		Trace = nil
	}
	if on {
		f, err := os.Create(os.Getenv("TREEC_TRACEDIR") + "trace_" + fmt.Sprint(time.Now().Unix()) + ".json")
		if err != nil {
			panic(err)
		}
		Trace = NewTrace(f)
	}
}

func NewTrace(file io.WriteCloser) *Tracefile {
	file.Write([]byte("["))
	result := new(Tracefile)
	result.file = file
	result.isFirst = true
	return result
}

func (t *Tracefile) Close() {
	t.file.Write([]byte("]"))
	t.file.Close()
}

type traceEvent struct {
	Phase  string `json:"phase"`
	Module string `json:"module"`
	Start  int64  `json:"start_us"`
	Dur    int64  `json:"dur_us"`
}

func (t *Tracefile) write(ev traceEvent) {
	t.m.Lock()
	defer t.m.Unlock()
	if !t.isFirst {
		t.file.Write([]byte(",\n"))
	}
	t.isFirst = false
	b, _ := json.Marshal(ev)
	t.file.Write(b)
}

// tracePhase logs one compile phase; call the returned func when done.
func tracePhase(module, phase string) func() {
	start := time.Now()
	return func() {
		if Trace != nil {
			Trace.write(traceEvent{
				Phase:  phase,
				Module: module,
				Start:  start.UnixMicro(),
				Dur:    time.Since(start).Microseconds(),
			})
		}
	}
}
