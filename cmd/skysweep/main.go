// Skysweep removes an account's Bluesky posts, likes and reposts once they are older than a
// retention window.
//
// Usage:
//
//	# One pass with settings from the environment (or .env)
//	skysweep run
//
//	# Report what a 30 day window would remove without touching anything
//	skysweep run --preserve-days 30 --dry-run
//
//	# Keep running, one pass every night at 3 AM
//	skysweep run --schedule "0 3 * * *"
//
// Exit status: 0 success, 1 engine error, 2 configuration error, 3 bad credential.
package main

func main() {
	Execute()
}
