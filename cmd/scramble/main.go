// Package main provides the scramble command-line client.
//
// Usage:
//
//	scramble play            play in the terminal
//	scramble play --daily    play today's shared puzzle
//	scramble words           inspect the word list
//
// See --help for all available options.
package main

func main() {
	Execute()
}
