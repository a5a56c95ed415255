package scoring

// MemoryAdjuster is the pluggable hook into a learning store that nudges
// an agent's fused score based on past corrections. The adjustment is
// bounded by configuration (max_penalty .. max_boost); the scorer clamps
// whatever the implementation returns.
type MemoryAdjuster interface {
	Adjust(agent, prompt string) float64
}

// NullAdjuster is the default binding when no learning store is wired in.
type NullAdjuster struct{}

// Adjust implements MemoryAdjuster.
func (NullAdjuster) Adjust(agent, prompt string) float64 { return 0 }
