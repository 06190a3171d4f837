/*
Boxworld trains a tabular agent on a small grid world with a movable, breakable box. The agent
must first reach a goal cell, which usually means pushing the box out of the only gap in a wall,
and then return to wherever the box ended up. Training can be watched in the console or in the
browser, and the learned values can be saved, resumed, and plotted.
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
