package paths

import (
	"flag"
)

// SetupFilePathFlag registers a string flag called flagName holding the path
// to fileName. It defaults to the path Find returns, or an empty string if
// the file is nowhere to be found.
func SetupFilePathFlag(fileName, flagName string, flagPtr *string) {
	flag.StringVar(flagPtr, flagName, Find(fileName), "path to "+fileName)
}

// SetupSpritesDirFlag registers a string flag called flagName holding a
// directory of sprite files, defaulting to FindDir.
func SetupSpritesDirFlag(flagName, usage string, flagPtr *string) {
	flag.StringVar(flagPtr, flagName, FindDir(), usage)
}
