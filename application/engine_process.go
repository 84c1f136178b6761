package application

// EngineProcess is a running UCI engine subprocess. Lines written go to the
// engine's standard input; Lines carries its standard output (standard error
// merged in), one decoded line per receive, and is closed on process exit.
type EngineProcess interface {
	WriteLine(line string) error
	Lines() <-chan string
	Alive() bool
	// Quit asks the engine to exit via the UCI quit command and waits briefly,
	// escalating to a terminate signal and then a kill.
	Quit()
	Kill()
}

// EngineSpawner starts engine subprocesses. The working directory of the
// spawned process is the directory containing the binary.
type EngineSpawner interface {
	Spawn(path string) (EngineProcess, error)
}
