// Command llmwire inspects and exercises the provider codecs: it prints the
// minimal wire payload for a request file and runs single chat turns.
package main

func main() {
	Execute()
}
