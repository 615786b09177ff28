package internal

import (
	"os"
	"runtime"
	"runtime/pprof"
)

// StartCPUProfile writes a CPU profile to a file, until the returned function is called
func StartCPUProfile(path string) (func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err = pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return func() error {
		pprof.StopCPUProfile()
		return f.Close()
	}, nil
}

// WriteMemProfiles writes the heap and allocation profiles to files named after a prefix.
// Existing profiles are not overwritten.
func WriteMemProfiles(prefix string) error {
	runtime.GC()
	if err := writeProfIfNExist(prefix+".mem.prof", "heap"); err != nil {
		return err
	}
	return writeProfIfNExist(prefix+".alloc.prof", "allocs")
}

func writeProfIfNExist(path string, name string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		var fprof *os.File
		fprof, err = os.Create(path)
		if err != nil {
			return err
		}
		defer fprof.Close()
		err = pprof.Lookup(name).WriteTo(fprof, 0)
		if err != nil {
			return err
		}
	}
	return nil
}
