package main

import "github.com/epifit/hospfit/cmd"

// TODO: tool subcommand to build and save the gamma lookup tables once
//       instead of rebuilding at every startup

// TODO: checkpointing for chains (so we can freeze and continue)

func main() {
	cmd.Execute()
}
