// Package main hosts the podcast-player CLI.
//
// The Cobra command tree resolves configuration, opens the progress store,
// loads the episode catalog and selects an audio backend, then hands off to
// either the terminal UI or one of the scripting commands (episode listing,
// search, headless playback, progress and settings maintenance).
package main
