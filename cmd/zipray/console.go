//go:build !windows

package main

func waitConsole() {
}
