package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu     sync.Mutex
	output io.Writer = os.Stderr
)

// DebugEnabled returns true if debug mode is enabled via PROTASK_DEBUG environment variable
func DebugEnabled() bool {
	return os.Getenv("PROTASK_DEBUG") != ""
}

// SetOutput redirects log output. It returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := output
	output = w
	return prev
}

// Debugf prints a formatted debug message only if debug mode is enabled
func Debugf(format string, args ...interface{}) {
	if DebugEnabled() {
		write("debug: "+format, args...)
	}
}

// Debugln prints a debug message followed by a newline only if debug mode is enabled
func Debugln(args ...interface{}) {
	if DebugEnabled() {
		write("debug: %s\n", fmt.Sprint(args...))
	}
}

// Errorf always prints. It is used for failures that are recovered from
// but must not go unnoticed, such as a lost task subscription.
func Errorf(format string, args ...interface{}) {
	write("error: "+format, args...)
}

func write(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(output, format, args...)
}
