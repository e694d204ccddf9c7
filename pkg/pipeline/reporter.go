package pipeline

// Reporter receives stage outputs as they are produced, for console display.
type Reporter interface {
	FileContent(content string)
	Orchestrator(iteration int, out OrchestratorOutput)
	SubAgent(iteration int, task string, reply Reply)
	Refined(reply Reply)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) FileContent(string) {}
func (NopReporter) Orchestrator(int, OrchestratorOutput) {}
func (NopReporter) SubAgent(int, string, Reply) {}
func (NopReporter) Refined(Reply) {}
