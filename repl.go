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
package main

import (
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/launix-de/treec/tree"
)

const newprompt = "\033[32m>\033[0m "

func Repl() {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".treec-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			} else {
				continue
			}
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		if line == "" {
			continue
		}
		if strings.TrimSpace(line) == "exit" {
			break
		}

		// anti-panic func
		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Println("panic:", r, string(debug.Stack()))
				}
			}()
			replCommand(line)
		}()
	}
}

func replCommand(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "eval":
		evalInput(fields[1:])
	case "bench":
		n := 10000
		if len(fields) > 1 {
			n, _ = strconv.Atoi(fields[1])
		}
		bench(n)
	case "info":
		info()
	case "print":
		if activeTree != nil {
			fmt.Print(tree.FormatTree(activeTree))
		}
	case "help":
		fmt.Print(`commands:
  eval <v0> <v1> ...   resolve one input vector to its leaf index
  bench <n>            time interpreter vs compiled code on n random inputs
  info                 show tree and evaluator statistics
  print                print the tree in the text format
  help                 this text
  exit                 quit
`)
	default:
		fmt.Println("unknown command: " + fields[0] + " (try help)")
	}
}
