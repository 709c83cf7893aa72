package ase_test

import (
	"fmt"
	"time"

	"badc0de.net/pkg/go-aseprite/ase"
	"badc0de.net/pkg/go-aseprite/ttesting"
)

// ExampleDecode decodes a sprite and lists its tags.
func ExampleDecode() {
	data := ttesting.Strip(16, 16, 100*time.Millisecond, 100*time.Millisecond, 200*time.Millisecond).
		Tag("idle", 0, 1, ttesting.Forward, 0).
		Tag("blink", 2, 2, ttesting.Forward, 1).
		Bytes()

	f, err := ase.Decode(data)
	if err != nil {
		fmt.Printf("failed to decode: %s", err)
		return
	}

	fmt.Printf("%dx%d, %d frames\n", f.Width, f.Height, len(f.Frames))
	for _, t := range f.Tags {
		fmt.Printf("%s: %d-%d %v\n", t.Name, t.From, t.To, t.Direction)
	}
	// Output:
	// 16x16, 3 frames
	// idle: 0-1 forward
	// blink: 2-2 forward
}
