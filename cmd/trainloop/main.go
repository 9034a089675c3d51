// Trainloop inspects and serves the data captured from instrumented LLM
// calls.
//
// Captured calls land in a data folder as JSONL event files plus a call-site
// registry. This command reads that folder:
//
//	# Show the effective configuration
//	trainloop config show
//
//	# List call sites and how often each one ran
//	trainloop registry
//
//	# List event files, then print the records of one
//	trainloop events list
//	trainloop events show 1718000000000.jsonl --tag summarize
//
//	# Delete event files outside the retention policy
//	trainloop prune --days 30 --dry-run
//
//	# Serve health, metrics, registry and event endpoints
//	trainloop serve --listen 127.0.0.1:9464
package main

func main() {
	Execute()
}
