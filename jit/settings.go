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

import "github.com/dc0d/onexit"

type SettingsT struct {
	CacheDir     string // where tree/object cache files live
	DisableCache bool   // always compile in-memory
	Verbose      bool   // dump the disassembled module after composing
	Trace        bool   // write a phase trace file
}

var Settings SettingsT = SettingsT{".", false, false, false}

// call this after you filled Settings
func InitSettings() {
	if Settings.Trace {
		SetTrace(true)
	}
	onexit.Register(func() { SetTrace(false) }) // close trace file on exit
}
