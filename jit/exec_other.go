//go:build !(linux || darwin || freebsd)

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

import "errors"

const execSupported = false

type execBuf struct{}

func allocExec(size int) (*execBuf, error) {
	return nil, errors.New("jit: no executable memory on this platform")
}

func (e *execBuf) install(code []byte) error {
	return errors.New("jit: no executable memory on this platform")
}

func (e *execBuf) release() {}

func (e *execBuf) funcAt(offset int32) Evaluator {
	panic("jit: no executable memory on this platform")
}

func nativeSupported() bool {
	return false
}
