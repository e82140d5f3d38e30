// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Run       RunCmd       `cmd:"" help:"Run an interactive session"`
	Broadcast BroadcastCmd `cmd:"" help:"Send one message to every persona and print the replies"`
	Memo      MemoCmd      `cmd:"" help:"Work the executive inbox of a saved session"`
	Export    ExportCmd    `cmd:"" help:"Copy the session snapshot to a file"`
	Import    ImportCmd    `cmd:"" help:"Install a snapshot file as the session state"`
	Replay    ReplayCmd    `cmd:"" help:"Replay a saved transcript"`
	Version   VersionCmd   `cmd:"" help:"Show version information"`
}

// RunCmd starts an interactive session.
type RunCmd struct {
	Config   string `help:"Config file path" default:"deepfish.toml"`
	Roster   string `help:"Roster file path (overrides config)"`
	Snapshot string `help:"Session state file to restore and save" default:"session.json"`
	NoSpeech bool   `help:"Disable voice synthesis"`
	Override bool   `help:"Start in diagnostic override mode"`
}

// BroadcastCmd sends a single broadcast and exits.
type BroadcastCmd struct {
	Message  string   `arg:"" help:"Message for every persona"`
	To       []string `help:"Limit recipients to these persona IDs" placeholder:"ID"`
	Config   string   `help:"Config file path" default:"deepfish.toml"`
	Roster   string   `help:"Roster file path (overrides config)"`
	Snapshot string   `help:"Session state file to restore and save" default:"session.json"`
}

// MemoCmd groups inbox operations on a saved session.
type MemoCmd struct {
	List    MemoListCmd    `cmd:"" help:"List memo threads"`
	Read    MemoReadCmd    `cmd:"" help:"Read a thread and mark it read"`
	Reply   MemoReplyCmd   `cmd:"" help:"Reply to a thread and wait for the response"`
	Archive MemoArchiveCmd `cmd:"" help:"Archive a thread"`
	Delete  MemoDeleteCmd  `cmd:"" help:"Delete a thread"`
}

type memoFlags struct {
	Config   string `help:"Config file path" default:"deepfish.toml"`
	Roster   string `help:"Roster file path (overrides config)"`
	Snapshot string `help:"Session state file" default:"session.json"`
}

// MemoListCmd lists threads.
type MemoListCmd struct {
	memoFlags
	Archived bool `help:"Show archived threads instead of active ones"`
}

// MemoReadCmd prints one thread.
type MemoReadCmd struct {
	memoFlags
	Thread string `arg:"" help:"Thread ID (prefix match)"`
}

// MemoReplyCmd replies to a thread.
type MemoReplyCmd struct {
	memoFlags
	Thread  string `arg:"" help:"Thread ID (prefix match)"`
	Message string `arg:"" help:"Reply body"`
}

// MemoArchiveCmd archives a thread.
type MemoArchiveCmd struct {
	memoFlags
	Thread string `arg:"" help:"Thread ID (prefix match)"`
}

// MemoDeleteCmd deletes a thread.
type MemoDeleteCmd struct {
	memoFlags
	Thread string `arg:"" help:"Thread ID (prefix match)"`
}

// ExportCmd writes the session snapshot to a portable file.
type ExportCmd struct {
	Output   string `arg:"" help:"Destination file"`
	Snapshot string `help:"Session state file" default:"session.json"`
}

// ImportCmd validates a snapshot file and makes it the session state.
type ImportCmd struct {
	Input    string `arg:"" help:"Snapshot file to import"`
	Snapshot string `help:"Session state file" default:"session.json"`
}

// ReplayCmd replays a transcript file.
type ReplayCmd struct {
	Transcript string  `arg:"" help:"Transcript file to replay"`
	Verbose    int     `short:"v" type:"counter" help:"Verbosity level (-v shows thinking, args, tokens)"`
	Width      int     `help:"Wrap width" default:"100"`
	CostIn     float64 `help:"Input token price per 1M" placeholder:"USD"`
	CostOut    float64 `help:"Output token price per 1M" placeholder:"USD"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
