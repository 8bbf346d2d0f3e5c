// Package cli provides the small set of entry-point helpers cmd/orbit
// shares: version reporting, a leveled stderr logger, and usage
// formatting. No subcommand logic lives here; that belongs to cmd/orbit
// itself.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"time"
)

const (
	Version   = "0.1.0"
	BuildDate = "2026-01-01"
	CommitSHA = "unknown"
)

// VersionInfo is the structured form of PrintVersion's output.
type VersionInfo struct {
	Version   string
	BuildDate string
	CommitSHA string
	GoVersion string
	Platform  string
	Arch      string
}

func GetVersionInfo() *VersionInfo {
	return &VersionInfo{
		Version:   Version,
		BuildDate: BuildDate,
		CommitSHA: CommitSHA,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// PrintVersion writes version information to stdout.
func PrintVersion(toolName string) {
	info := GetVersionInfo()

	fmt.Printf("%s v%s\n", toolName, info.Version)
	fmt.Printf("Build Date: %s\n", info.BuildDate)

	if info.CommitSHA != "unknown" && info.CommitSHA != "" {
		fmt.Printf("Commit: %s\n", info.CommitSHA)
	}

	fmt.Printf("Go Version: %s\n", info.GoVersion)
	fmt.Printf("Platform: %s/%s\n", info.Platform, info.Arch)
}

// ExitWithError prints an error to stderr and exits with code 1.
func ExitWithError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// Logger is a leveled writer to stderr: Info/Debug are gated by
// verbosity, Warn/Error always print.
type Logger struct {
	Verbose   bool
	DebugMode bool
}

func NewLogger(verbose, debug bool) *Logger {
	return &Logger{Verbose: verbose, DebugMode: debug}
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.Verbose {
		l.writef("info", format, args...)
	}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.DebugMode {
		l.writef("debug", format, args...)
	}
}

func (l *Logger) Warn(format string, args ...interface{}) { l.writef("warn", format, args...) }

func (l *Logger) Error(format string, args ...interface{}) { l.writef("error", format, args...) }

func (l *Logger) writef(level, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", level, time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
}

// CommandInfo documents one subcommand for PrintUsage/PrintCommandUsage.
type CommandInfo struct {
	Name        string
	Usage       string
	Description string
	Examples    []string
	Flags       []FlagInfo
}

// FlagInfo documents one flag of a CommandInfo.
type FlagInfo struct {
	Name    string
	Usage   string
	Default string
}

// PrintUsage prints the top-level command listing.
func PrintUsage(tool string, commands []CommandInfo) {
	fmt.Printf("%s - HDL package manager and build driver\n\n", tool)
	fmt.Printf("USAGE:\n    %s <command> [OPTIONS] [-- <pass-through args>]\n\n", tool)

	if len(commands) > 0 {
		fmt.Printf("COMMANDS:\n")

		for _, cmd := range commands {
			fmt.Printf("    %-10s %s\n", cmd.Name, cmd.Description)
		}

		fmt.Printf("\n")
	}

	fmt.Printf("Use '%s <command> -h' for more information about a command.\n", tool)
}

// PrintCommandUsage prints one subcommand's detailed usage.
func PrintCommandUsage(tool string, cmd CommandInfo) {
	fmt.Printf("%s %s - %s\n\n", tool, cmd.Name, cmd.Description)
	fmt.Printf("USAGE:\n    %s\n\n", cmd.Usage)

	if len(cmd.Flags) > 0 {
		fmt.Printf("OPTIONS:\n")

		for _, f := range cmd.Flags {
			fmt.Printf("    --%-12s %s\n", f.Name, f.Usage)

			if f.Default != "" {
				fmt.Printf("    %-14s Default: %s\n", "", f.Default)
			}
		}

		fmt.Printf("\n")
	}

	if len(cmd.Examples) > 0 {
		fmt.Printf("EXAMPLES:\n")

		for _, ex := range cmd.Examples {
			fmt.Printf("    %s\n", ex)
		}

		fmt.Printf("\n")
	}
}

// HandleError logs err (if non-nil) through logger, or straight to
// stderr when logger is nil, and exits with code 1.
func HandleError(err error, logger *Logger) {
	if err == nil {
		return
	}

	if logger != nil {
		logger.Error("%v", err)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}

	os.Exit(1)
}
